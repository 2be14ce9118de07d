// Package chromem is the embedded vector store backed by chromem-go. With a
// path it persists to disk; otherwise it lives in process memory.
package chromem

import (
	"context"
	"strconv"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	chromemgo "github.com/philippgille/chromem-go"

	"webrag/internal/domain"
	"webrag/internal/vectorstore"
)

type Storage struct {
	db         *chromemgo.DB
	collection string

	mu        sync.RWMutex
	col       *chromemgo.Collection
	dimension int
}

type Config struct {
	Collection string
	// Path enables on-disk persistence when set.
	Path     string
	Compress bool
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Collection == "" {
		return nil, goerr.New("collection name is required")
	}

	db := chromemgo.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open chromem database",
				goerr.T(domain.ErrTagStore), goerr.V("path", cfg.Path))
		}
	}
	return &Storage{db: db, collection: cfg.Collection}, nil
}

// noEmbedding is installed as the collection's embedding function. Records
// always arrive with vectors, so it is never expected to run.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, goerr.New("chromem store requires precomputed embeddings")
}

func (s *Storage) Reset(ctx context.Context, dimension int, metric domain.Metric) error {
	if err := vectorstore.CheckReset(dimension, metric); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.collection); err != nil {
		return goerr.Wrap(err, "failed to drop collection",
			goerr.T(domain.ErrTagStore), goerr.V("collection", s.collection))
	}
	meta := map[string]string{
		"metric":    string(metric),
		"dimension": strconv.Itoa(dimension),
	}
	col, err := s.db.CreateCollection(s.collection, meta, noEmbedding)
	if err != nil {
		return goerr.Wrap(err, "failed to create collection",
			goerr.T(domain.ErrTagStore), goerr.V("collection", s.collection))
	}
	s.col = col
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := vectorstore.CheckRecord(record, s.dimension); err != nil {
		return goerr.Wrap(err, "rejected record", goerr.V("url", record.URL))
	}

	vec := make([]float32, len(record.Vector))
	copy(vec, record.Vector)
	doc := chromemgo.Document{
		ID:        record.URL,
		Metadata:  map[string]string{"url": record.URL},
		Embedding: vec,
		Content:   record.Text,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document",
			goerr.T(domain.ErrTagStore), goerr.V("url", record.URL))
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := vectorstore.CheckQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	// chromem rejects n larger than the collection.
	n := min(k, s.col.Count())
	if n <= 0 {
		return []domain.Match{}, nil
	}

	results, err := s.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection",
			goerr.T(domain.ErrTagStore), goerr.V("collection", s.collection))
	}

	matches := make([]domain.Match, 0, len(results))
	for _, r := range results {
		url := r.Metadata["url"]
		if url == "" {
			url = r.ID
		}
		matches = append(matches, domain.Match{URL: url, Text: r.Content, Score: float64(r.Similarity)})
	}
	return matches, nil
}

// Close is a no-op; persistent databases are written on every change.
func (s *Storage) Close() error { return nil }
