package searxng_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"webrag/internal/domain"
	"webrag/internal/search/searxng"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/search")
		gt.Equal(t, r.URL.Query().Get("q"), "rust ownership")
		gt.Equal(t, r.URL.Query().Get("format"), "json")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.example","title":"a"},
			{"url":"","title":"no url"},
			{"url":"https://b.example"},
			{"url":"https://a.example"},
			{"url":"https://c.example"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	c := searxng.NewClient(searxng.Config{URL: srv.URL + "/"})

	urls, err := c.Search(context.Background(), "rust ownership", 5)
	gt.NoError(t, err)
	gt.Equal(t, urls, []string{"https://a.example", "https://b.example", "https://a.example", "https://c.example"})

	urls, err = c.Search(context.Background(), "rust ownership", 2)
	gt.NoError(t, err)
	gt.Equal(t, urls, []string{"https://a.example", "https://b.example"})
}

func TestSearchFailures(t *testing.T) {
	testCases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":`))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		},
	}

	for name, h := range testCases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			t.Cleanup(srv.Close)

			c := searxng.NewClient(searxng.Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
			_, err := c.Search(context.Background(), "q", 5)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, domain.ErrTagSearchUnavailable))
		})
	}
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := searxng.NewClient(searxng.Config{URL: addr})
	_, err := c.Search(context.Background(), "q", 5)
	gt.True(t, goerr.HasTag(err, domain.ErrTagSearchUnavailable))
}
