package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/embedding/hashing"
	"webrag/internal/vectorstore/chromem"
)

type fakeSearch struct {
	urls []string
	err  error
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	return f.urls, f.err
}

type fakeExtractor struct {
	mu     sync.Mutex
	texts  map[string]string
	errs   map[string]error
	delays map[string]time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeExtractor) set(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.texts == nil {
		f.texts = map[string]string{}
	}
	f.texts[url] = text
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	text, err, delay := f.texts[url], f.errs[url], f.delays[url]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

type failingEmbedder struct{ domain.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, goerr.New("model unavailable", goerr.T(domain.ErrTagEmbedding))
}

type failingStore struct{ domain.VectorStore }

func (failingStore) Upsert(context.Context, domain.MemoryRecord) error {
	return goerr.New("store down", goerr.T(domain.ErrTagStore))
}

func (failingStore) Search(context.Context, []float32, int) ([]domain.Match, error) {
	return nil, goerr.New("store down", goerr.T(domain.ErrTagStore))
}

func newEmbedder() domain.Embedder {
	return hashing.NewEmbedder(hashing.Config{Dimension: 256})
}

func newStore(t *testing.T, dim int) domain.VectorStore {
	t.Helper()
	s, err := chromem.NewStorage(chromem.Config{Collection: "web_memory"})
	gt.NoError(t, err)
	gt.NoError(t, s.Reset(context.Background(), dim, domain.MetricCosine))
	t.Cleanup(func() { _ = s.Close() })
	return s
}
