package scraper_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/m-mizutani/gt"

	"webrag/internal/scraper"
)

func scrape(t *testing.T, h http.Handler, target string) (int, scraper.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/scrape?url="+url.QueryEscape(target), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp scraper.Response
	gt.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestScrape(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "unexpected user agent", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(ownershipPage))
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("<html><body><article><p>The caf\xe9 on the corner opens at seven every morning and " +
				"serves coffee, fresh bread and a small breakfast menu to the people who live in the quarter.</p>" +
				"<p>On weekends the caf\xe9 stays open late and hosts readings by local writers.</p></article></body></html>"))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  plain   text \n\n second line "))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><script>1</script></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)

	h := scraper.NewServer(":0", scraper.NewFetcher(scraper.FetcherConfig{UserAgent: "test-agent"})).Handler()

	t.Run("article", func(t *testing.T) {
		code, resp := scrape(t, h, site.URL+"/page")
		gt.Equal(t, code, http.StatusOK)
		gt.S(t, resp.Content).Contains("there can only be one owner at a time.")
		gt.S(t, resp.Content).NotContains("Copyright Example Corp")
		gt.Equal(t, resp.Error, "")
	})

	t.Run("charset", func(t *testing.T) {
		_, resp := scrape(t, h, site.URL+"/latin1")
		gt.S(t, resp.Content).Contains("The café on the corner")
		gt.S(t, resp.Content).Contains("the café stays open late")
	})

	t.Run("plain text", func(t *testing.T) {
		_, resp := scrape(t, h, site.URL+"/plain")
		gt.Equal(t, resp.Content, "plain text\nsecond line")
	})

	t.Run("failures are reported in the body", func(t *testing.T) {
		for _, path := range []string{"/missing", "/empty"} {
			code, resp := scrape(t, h, site.URL+path)
			gt.Equal(t, code, http.StatusOK)
			gt.Equal(t, resp.Content, "")
			gt.True(t, resp.Error != "")
		}
	})
}

func TestScrapeRejectsBadURL(t *testing.T) {
	h := scraper.NewServer(":0", scraper.NewFetcher(scraper.FetcherConfig{})).Handler()

	for _, target := range []string{"", "ftp://example.com/x", "not a url", "/relative"} {
		code, resp := scrape(t, h, target)
		gt.Equal(t, code, http.StatusBadRequest)
		gt.True(t, resp.Error != "")
	}
}

func TestHealth(t *testing.T) {
	h := scraper.NewServer(":0", scraper.NewFetcher(scraper.FetcherConfig{})).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Equal(t, rec.Code, http.StatusOK)
}
