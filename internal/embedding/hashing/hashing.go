package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"webrag/internal/embedding"
	"webrag/internal/textproc"
)

// DefaultDimension matches the sentence-transformer models the store is
// usually sized for.
const DefaultDimension = 384

// Embedder maps text to a fixed-size vector with the signed hashing trick.
// Each term is hashed into one of Dimension buckets; sublinear term frequency
// is added with a sign taken from the hash so collisions tend to cancel.
// It needs no corpus and no model, and identical text always produces the
// identical vector.
type Embedder struct {
	dimension int
	maxChars  int
}

// Config configures the hashing embedder.
type Config struct {
	Dimension     int
	MaxInputChars int
}

// NewEmbedder creates a hashing embedder.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	return &Embedder{dimension: cfg.Dimension, maxChars: cfg.MaxInputChars}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed term-frequency vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.CheckInput(text, e.maxChars); err != nil {
		return nil, err
	}

	terms := textproc.Tokenize(text)
	if len(terms) == 0 {
		// only stopwords, or no letters at all
		terms = textproc.Words(text)
	}
	if len(terms) == 0 {
		terms = []string{strings.ToLower(strings.TrimSpace(text))}
	}

	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	vec := make([]float32, e.dimension)
	for term, count := range tf {
		idx, sign := e.bucket(term)
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	if isZero(vec) {
		idx, _ := e.bucket(text)
		vec[idx] = 1
	}
	return embedding.Normalize(vec), nil
}

func (e *Embedder) bucket(term string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
