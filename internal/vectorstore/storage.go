// Package vectorstore holds the checks and scoring shared by the vector store
// backends in its subpackages.
package vectorstore

import (
	"math"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
)

// CheckReset validates the parameters a collection is created with.
func CheckReset(dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return goerr.New("invalid dimension", goerr.T(domain.ErrTagStore), goerr.V("dimension", dimension))
	}
	if metric != domain.MetricCosine {
		return goerr.New("unsupported metric", goerr.T(domain.ErrTagStore), goerr.V("metric", metric))
	}
	return nil
}

// CheckRecord rejects records that cannot be stored in a collection of the
// given dimension. A dimension of zero means the collection was never reset.
func CheckRecord(record domain.MemoryRecord, dimension int) error {
	if dimension == 0 {
		return goerr.New("collection not initialised", goerr.T(domain.ErrTagStore))
	}
	if record.URL == "" {
		return goerr.New("record has no url", goerr.T(domain.ErrTagStore))
	}
	return CheckVector(record.Vector, dimension)
}

// CheckQuery rejects a search vector for a collection of the given
// dimension. Like CheckRecord it fails when the collection was never reset.
func CheckQuery(vector []float32, dimension int) error {
	if dimension == 0 {
		return goerr.New("collection not initialised", goerr.T(domain.ErrTagStore))
	}
	return CheckVector(vector, dimension)
}

func CheckVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return goerr.New("vector dimension mismatch",
			goerr.T(domain.ErrTagStore),
			goerr.V("got", len(vector)),
			goerr.V("expected", dimension))
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
