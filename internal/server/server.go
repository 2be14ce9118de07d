// Package server exposes the ingestion and recall pipelines as HTTP tools.
//
// Endpoints:
//
//	POST /tool/search  → web search, scrape and store; returns the context
//	POST /tool/memory  → semantic lookup in stored memory
//	GET  /openapi.json → tool description for tool-calling front ends
//	GET  /health       → {status}
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
	"webrag/internal/logging"
)

//go:embed openapi.json
var openAPISpec []byte

const maxRequestBytes = 1 << 20

const (
	searchToolName        = "web_search"
	searchToolDescription = "Performs web search and scrapes results for RAG context"
	memoryToolName        = "memory_lookup"
	memoryToolDescription = "Retrieves related documents from local memory"
)

type Ingester interface {
	Ingest(ctx context.Context, query string) *domain.IngestionResult
}

type Recaller interface {
	Recall(ctx context.Context, query string) (*domain.RecallResult, error)
}

type Config struct {
	Addr string
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
}

type Server struct {
	ingest Ingester
	recall Recaller
	server *http.Server
}

func New(cfg Config, ingest Ingester, recall Recaller) *Server {
	s := &Server{ingest: ingest, recall: recall}

	mux := http.NewServeMux()
	mux.HandleFunc("/tool/search", s.handleSearch)
	mux.HandleFunc("/tool/memory", s.handleMemory)
	mux.HandleFunc("/openapi.json", s.handleOpenAPI)
	mux.HandleFunc("/health", s.handleHealth)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           withCORS(origins, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routes for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully, letting
// in-flight requests complete. Requests carry the logger of ctx.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen", goerr.V("addr", s.server.Addr))
	}
	// Requests keep the logger but not the cancellation of ctx, so in-flight
	// work can finish while Shutdown drains it.
	base := logging.With(context.Background(), logging.From(ctx))
	s.server.BaseContext = func(net.Listener) context.Context { return base }

	logger := logging.From(ctx)
	logger.Info("api server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "api server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down api server")
	}
	logger.Info("api server stopped")
	return nil
}

type queryRequest struct {
	Query *string `json:"query"`
}

type searchResponse struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Query       string                `json:"query"`
	Sources     []string              `json:"sources"`
	Context     string                `json:"context"`
	Statuses    []domain.SourceStatus `json:"statuses"`
}

type memoryResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Query       string         `json:"query"`
	Matches     []domain.Match `json:"matches"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	res := s.ingest.Ingest(r.Context(), query)
	writeJSON(w, http.StatusOK, searchResponse{
		Name:        searchToolName,
		Description: searchToolDescription,
		Query:       res.Query,
		Sources:     nonNil(res.Sources),
		Context:     res.Context,
		Statuses:    nonNil(res.Statuses),
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	res, err := s.recall.Recall(r.Context(), query)
	if err != nil {
		if goerr.HasTag(err, domain.ErrTagEmbedding) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		logging.From(r.Context()).Error("memory lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "memory lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, memoryResponse{
		Name:        memoryToolName,
		Description: memoryToolDescription,
		Query:       res.Query,
		Matches:     nonNil(res.Matches),
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPISpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeQuery reads {"query": "..."} from a POST body, writing the error
// response itself when the request is unusable.
func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body: " + err.Error()})
		return "", false
	}
	if req.Query == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "field required: query"})
		return "", false
	}
	return *req.Query, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
