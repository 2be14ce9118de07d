package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"webrag/internal/config"
	"webrag/internal/domain"
	"webrag/internal/embedding/hashing"
)

func fakeBackends(t *testing.T) (searxURL, scrapeURL string) {
	t.Helper()
	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"url":"https://u1.example"},{"url":"https://u2.example"}]}`))
	}))
	t.Cleanup(searx.Close)
	scrape := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := r.URL.Query().Get("url")
		if u == "https://u2.example" {
			_ = json.NewEncoder(w).Encode(map[string]string{"url": u, "error": "connection refused"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": u, "content": "Rust ownership keeps memory safe."})
	}))
	t.Cleanup(scrape.Close)
	return searx.URL, scrape.URL
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestIngestCommand(t *testing.T) {
	searx, scrape := fakeBackends(t)
	path := writeConfig(t, fmt.Sprintf("log_level: error\nsearch:\n  url: %s\nextractor:\n  url: %s\n", searx, scrape))

	var out bytes.Buffer
	err := run(context.Background(), []string{"webrag", "--config", path, "ingest", "rust", "ownership"}, &out)
	gt.NoError(t, err)
	gt.S(t, out.String()).Contains("stored         https://u1.example")
	gt.S(t, out.String()).Contains("fetch_failed   https://u2.example")
	gt.S(t, out.String()).Contains("SOURCE: https://u1.example\nRust ownership keeps memory safe.\n")
}

func TestIngestCommandJSON(t *testing.T) {
	searx, scrape := fakeBackends(t)
	db := filepath.Join(t.TempDir(), "memory.db")
	path := writeConfig(t, fmt.Sprintf("log_level: error\nvector_store:\n  sqlite:\n    path: %s\n", db))

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"webrag", "--config", path, "ingest", "--json",
		"--searxng-url", searx, "--scraper-url", scrape, "--store", "sqlite",
		"rust ownership",
	}, &out)
	gt.NoError(t, err)

	var res domain.IngestionResult
	gt.NoError(t, json.Unmarshal(out.Bytes(), &res))
	gt.Equal(t, res.Query, "rust ownership")
	gt.Equal(t, res.Sources, []string{"https://u1.example", "https://u2.example"})
	gt.Equal(t, res.Statuses[0].State, domain.StateStored)
	gt.Equal(t, res.Statuses[1].State, domain.StateFetchFailed)
}

func TestIngestCommandRequiresQuery(t *testing.T) {
	path := writeConfig(t, "log_level: error\n")
	err := run(context.Background(), []string{"webrag", "--config", path, "ingest"}, &bytes.Buffer{})
	gt.Error(t, err)
}

func TestUnknownStoreFailsAtStartup(t *testing.T) {
	path := writeConfig(t, "log_level: error\n")
	err := run(context.Background(), []string{"webrag", "--config", path, "ingest", "--store", "pinecone", "q"}, &bytes.Buffer{})
	gt.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	path := writeConfig(t, "log_level: error\n")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"webrag", "--config", path, "serve", "--addr", "127.0.0.1:0"}, &bytes.Buffer{})
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

type shortEmbedder struct{ domain.Embedder }

func (shortEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestOverridesApply(t *testing.T) {
	cfg := config.Default()
	o := &overrides{searxngURL: "http://searx.local", store: "qdrant", qdrantURL: "http://q.local:6333"}
	o.apply(cfg)

	gt.Equal(t, cfg.Search.URL, "http://searx.local")
	gt.Equal(t, cfg.Extractor.URL, "http://scraper:8090")
	gt.Equal(t, cfg.VectorStore.Type, "qdrant")
	gt.Equal(t, cfg.VectorStore.Qdrant.URL, "http://q.local:6333")
}

func TestProbeDimension(t *testing.T) {
	emb := hashing.NewEmbedder(hashing.Config{Dimension: 32})
	gt.NoError(t, probeDimension(context.Background(), emb))
	gt.Error(t, probeDimension(context.Background(), shortEmbedder{emb}))
}
