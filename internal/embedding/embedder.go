// Package embedding holds the helpers shared by the embedder implementations
// in its subpackages.
package embedding

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
)

// CheckInput rejects text that no embedder should be called with: empty or
// whitespace-only input, and input longer than maxChars runes when maxChars > 0.
func CheckInput(text string, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return goerr.New("cannot embed empty text", goerr.T(domain.ErrTagEmbedding))
	}
	if maxChars > 0 {
		if n := utf8.RuneCountInString(text); n > maxChars {
			return goerr.New("text exceeds embedder input limit",
				goerr.T(domain.ErrTagEmbedding),
				goerr.V("length", n),
				goerr.V("limit", maxChars))
		}
	}
	return nil
}

// CheckDimension rejects a vector whose length differs from the configured
// dimension.
func CheckDimension(vec []float32, dimension int) error {
	if len(vec) != dimension {
		return goerr.New("embedding dimension mismatch",
			goerr.T(domain.ErrTagEmbedding),
			goerr.V("got", len(vec)),
			goerr.V("expected", dimension))
	}
	return nil
}

// Normalize scales vec to unit length in place. Zero vectors are returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
