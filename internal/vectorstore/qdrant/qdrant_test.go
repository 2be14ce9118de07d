package qdrant_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/vectorstore/qdrant"
	"webrag/internal/vectorstore/storetest"
)

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of REST endpoints the client uses.
type fakeQdrant struct {
	mu          sync.Mutex
	apiKey      string
	collections map[string]map[string]point
}

func newFakeQdrant(t *testing.T, apiKey string) *httptest.Server {
	f := &fakeQdrant{apiKey: apiKey, collections: map[string]map[string]point{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case len(parts) == 2 && r.Method == http.MethodDelete:
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.collections, name)
	case len(parts) == 2 && r.Method == http.MethodPut:
		if _, ok := f.collections[name]; ok {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		f.collections[name] = map[string]point{}
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		col, ok := f.collections[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			if _, err := uuid.Parse(p.ID); err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			col[p.ID] = p
		}
	case len(parts) == 4 && parts[3] == "search" && r.Method == http.MethodPost:
		col, ok := f.collections[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type scored struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		result := []scored{}
		for _, p := range col {
			result = append(result, scored{Score: cosine(body.Vector, p.Vector), Payload: p.Payload})
		}
		sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
		if len(result) > body.Limit {
			result = result[:body.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
		return
	default:
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestStorageAgainstFake(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		srv := newFakeQdrant(t, "secret")
		s := qdrant.NewStorage(qdrant.Config{URL: srv.URL, APIKey: "secret", Collection: "web_memory"})
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStorageIntegration(t *testing.T) {
	url := os.Getenv("TEST_QDRANT_URL")
	if url == "" {
		t.Skip("TEST_QDRANT_URL is not set")
	}

	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		s := qdrant.NewStorage(qdrant.Config{
			URL:        url,
			APIKey:     os.Getenv("TEST_QDRANT_API_KEY"),
			Collection: "webrag_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		})
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPointID(t *testing.T) {
	a := qdrant.PointID("https://a.example")
	gt.Equal(t, a, qdrant.PointID("https://a.example"))
	gt.True(t, a != qdrant.PointID("https://b.example"))

	id, err := uuid.Parse(a)
	gt.NoError(t, err)
	gt.Equal(t, id.Version(), uuid.Version(5))
}
