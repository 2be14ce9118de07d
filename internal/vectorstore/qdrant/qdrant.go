package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
	"webrag/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant. Point ids are UUIDv5 of the
// record URL, so re-ingesting a URL overwrites its point.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID returns the Qdrant point id for a URL.
func PointID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Reset drops the collection (a missing collection is fine) and creates it
// again with the given vector size.
func (s *Storage) Reset(ctx context.Context, dimension int, metric domain.Metric) error {
	if err := vectorstore.CheckReset(dimension, metric); err != nil {
		return err
	}

	colURL := s.collectionURL()
	if err := s.do(ctx, http.MethodDelete, colURL, nil, nil, http.StatusNotFound); err != nil {
		return goerr.Wrap(err, "failed to drop collection", goerr.V("collection", s.collection))
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": string(metric),
		},
	}
	if err := s.do(ctx, http.MethodPut, colURL, body, nil); err != nil {
		return goerr.Wrap(err, "failed to create collection", goerr.V("collection", s.collection))
	}

	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	if err := vectorstore.CheckRecord(record, s.dim()); err != nil {
		return goerr.Wrap(err, "rejected record", goerr.V("url", record.URL))
	}

	body := map[string]any{
		"points": []map[string]any{{
			"id":     PointID(record.URL),
			"vector": record.Vector,
			"payload": map[string]any{
				"url":  record.URL,
				"text": record.Text,
			},
		}},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return goerr.Wrap(err, "failed to upsert point", goerr.V("url", record.URL))
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if err := vectorstore.CheckQuery(vector, s.dim()); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.Match{}, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				URL  string `json:"url"`
				Text string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to search points", goerr.V("collection", s.collection))
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, domain.Match{URL: r.Payload.URL, Text: r.Payload.Text, Score: r.Score})
	}
	return matches, nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request and decodes the response into out when non-nil.
// Statuses listed in ok are accepted in addition to 2xx.
func (s *Storage) do(ctx context.Context, method, url string, body, out any, ok ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal qdrant request", goerr.T(domain.ErrTagStore))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return goerr.Wrap(err, "failed to create qdrant request", goerr.T(domain.ErrTagStore))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "qdrant request failed",
			goerr.T(domain.ErrTagStore), goerr.V("method", method), goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		for _, code := range ok {
			if resp.StatusCode == code {
				return nil
			}
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return goerr.New("qdrant returned error",
			goerr.T(domain.ErrTagStore),
			goerr.V("method", method),
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return goerr.Wrap(err, "failed to decode qdrant response", goerr.T(domain.ErrTagStore))
		}
	}
	return nil
}
