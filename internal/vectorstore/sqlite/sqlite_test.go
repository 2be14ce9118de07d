package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/vectorstore/sqlite"
	"webrag/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		s, err := sqlite.NewStorage(sqlite.Config{Path: filepath.Join(t.TempDir(), "memory.db")})
		gt.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestInMemoryStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		s, err := sqlite.NewStorage(sqlite.Config{Path: ":memory:"})
		gt.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	s, err := sqlite.NewStorage(sqlite.Config{})
	gt.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	gt.NoError(t, s.Reset(ctx, 2, domain.MetricCosine))
	for _, u := range []string{"https://x.example", "https://y.example", "https://z.example"} {
		gt.NoError(t, s.Upsert(ctx, domain.MemoryRecord{URL: u, Text: u, Vector: []float32{1, 1}}))
	}

	matches, err := s.Search(ctx, []float32{1, 1}, 3)
	gt.NoError(t, err)
	gt.Equal(t, []string{matches[0].URL, matches[1].URL, matches[2].URL},
		[]string{"https://x.example", "https://y.example", "https://z.example"})
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3e-7, 0}
	blob := sqlite.EncodeVector(vec)
	gt.A(t, blob).Length(16)

	got, err := sqlite.DecodeVector(blob)
	gt.NoError(t, err)
	gt.Equal(t, got, vec)

	_, err = sqlite.DecodeVector([]byte{1, 2, 3})
	gt.Error(t, err)
}
