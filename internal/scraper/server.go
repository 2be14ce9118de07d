// Package scraper is the HTML-to-text service the extractor client talks to.
//
// Endpoints:
//
//	GET /scrape?url=<url> → {url, content, error?}
//	GET /health           → {status}
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/logging"
)

// Response is returned by GET /scrape. Fetch and extraction failures are
// reported in Error with status 200; only a bad request gets a 4xx.
type Response struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	fetcher *Fetcher
	server  *http.Server
}

func NewServer(addr string, fetcher *Fetcher) *Server {
	s := &Server{fetcher: fetcher}

	mux := http.NewServeMux()
	mux.HandleFunc("/scrape", s.handleScrape)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routes for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
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
	logger.Info("scraper listening", "addr", ln.Addr().String())

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
			return goerr.Wrap(err, "scraper server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down scraper")
	}
	logger.Info("scraper stopped")
	return nil
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("url")
	if !validTarget(target) {
		writeJSON(w, http.StatusBadRequest, Response{URL: target, Error: "url must be an absolute http or https URL"})
		return
	}

	text, err := s.fetcher.Fetch(r.Context(), target)
	if err != nil {
		logging.From(r.Context()).Warn("scrape failed", "url", target, "error", err)
		writeJSON(w, http.StatusOK, Response{URL: target, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{URL: target, Content: text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validTarget(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
