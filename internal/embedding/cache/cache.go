// Package cache memoises embeddings by input text.
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
)

// Embedder wraps another embedder with a bounded in-memory cache. Embedders
// are deterministic, so a cached vector is always valid for the same text.
type Embedder struct {
	inner domain.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding at most maxMB megabytes of vectors.
func New(inner domain.Embedder, maxMB int) (*Embedder, error) {
	if maxMB <= 0 {
		return nil, goerr.New("cache size must be positive", goerr.V("cache_mb", maxMB))
	}
	maxCost := int64(maxMB) << 20
	c, err := ristretto.NewCache(&ristretto.Config{
		// ~10x the expected number of entries, per ristretto's guidance.
		NumCounters: 10 * maxCost / int64(4*max(inner.Dimension(), 1)),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}
	return &Embedder{inner: inner, cache: c}, nil
}

func (e *Embedder) Name() string { return e.inner.Name() }

func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return clone(vec), nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, clone(vec), int64(4*len(vec)))
	return vec, nil
}

// Wait blocks until pending cache writes are applied.
func (e *Embedder) Wait() { e.cache.Wait() }

func (e *Embedder) Close() { e.cache.Close() }

func clone(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
