// Package storetest is a behavioural test suite every domain.VectorStore
// backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
)

// Run exercises a fresh store returned by newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) domain.VectorStore) {
	t.Helper()

	t.Run("reset validates parameters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.True(t, goerr.HasTag(s.Reset(ctx, 0, domain.MetricCosine), domain.ErrTagStore))
		gt.True(t, goerr.HasTag(s.Reset(ctx, 3, "Euclid"), domain.ErrTagStore))
	})

	t.Run("search before reset", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Search(ctx, nil, 5)
		gt.True(t, goerr.HasTag(err, domain.ErrTagStore))
		_, err = s.Search(ctx, []float32{1, 0, 0}, 5)
		gt.True(t, goerr.HasTag(err, domain.ErrTagStore))
	})

	t.Run("search on empty collection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))

		matches, err := s.Search(ctx, []float32{1, 0, 0}, 5)
		gt.NoError(t, err)
		gt.A(t, matches).Length(0)
	})

	t.Run("search ranks by cosine", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))

		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://b.example", Text: "b", Vector: []float32{0, 1, 0}}))
		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://a.example", Text: "a", Vector: []float32{1, 0, 0}}))
		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://c.example", Text: "c", Vector: []float32{0.9, 0.1, 0}}))

		matches, err := s.Search(ctx, []float32{2, 0, 0}, 5)
		gt.NoError(t, err)
		gt.A(t, matches).Length(3)
		gt.Equal(t, matches[0].URL, "https://a.example")
		gt.Equal(t, matches[0].Text, "a")
		gt.Equal(t, matches[1].URL, "https://c.example")
		gt.Equal(t, matches[2].URL, "https://b.example")
		for i := 1; i < len(matches); i++ {
			gt.True(t, matches[i-1].Score >= matches[i].Score)
		}
		gt.True(t, matches[0].Score > 0.99)

		top, err := s.Search(ctx, []float32{1, 0, 0}, 2)
		gt.NoError(t, err)
		gt.A(t, top).Length(2)
		gt.Equal(t, top[0].URL, "https://a.example")
	})

	t.Run("upsert overwrites by url", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))

		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://a.example", Text: "old", Vector: []float32{0, 1, 0}}))
		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://a.example", Text: "new", Vector: []float32{1, 0, 0}}))

		matches, err := s.Search(ctx, []float32{1, 0, 0}, 10)
		gt.NoError(t, err)
		gt.A(t, matches).Length(1)
		gt.Equal(t, matches[0].Text, "new")
		gt.True(t, matches[0].Score > 0.99)
	})

	t.Run("upsert rejects bad records", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := domain.MemoryRecord{URL: "https://a.example", Text: "a", Vector: []float32{1, 0, 0}}
		gt.True(t, goerr.HasTag(s.Upsert(ctx, rec), domain.ErrTagStore))

		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))
		gt.True(t, goerr.HasTag(s.Upsert(ctx, domain.MemoryRecord{URL: "u", Vector: []float32{1, 0}}), domain.ErrTagStore))
		gt.True(t, goerr.HasTag(s.Upsert(ctx, domain.MemoryRecord{Vector: []float32{1, 0, 0}}), domain.ErrTagStore))
	})

	t.Run("reset clears records", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))
		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: "https://a.example", Text: "a", Vector: []float32{1, 0, 0}}))

		gt.NoError(t, s.Reset(ctx, 2, domain.MetricCosine))
		matches, err := s.Search(ctx, []float32{1, 0}, 5)
		gt.NoError(t, err)
		gt.A(t, matches).Length(0)
	})

	t.Run("concurrent upserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gt.NoError(t, s.Reset(ctx, 3, domain.MetricCosine))

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Upsert(ctx, domain.MemoryRecord{
					URL:    fmt.Sprintf("https://%d.example", i),
					Text:   fmt.Sprintf("doc %d", i),
					Vector: []float32{1, float32(i), 0},
				})
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			gt.NoError(t, err)
		}

		matches, err := s.Search(ctx, []float32{1, 0, 0}, 20)
		gt.NoError(t, err)
		gt.A(t, matches).Length(8)
		gt.Equal(t, matches[0].URL, "https://0.example")
	})
}
