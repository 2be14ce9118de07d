// Package searxng is a search client for the SearXNG JSON API.
package searxng

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	client  *http.Client
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	t := cfg.Timeout
	if t <= 0 {
		t = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: t},
	}
}

type searchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"results"`
}

// Search returns up to maxResults result URLs in the backend's order. Results
// without a URL are skipped; duplicates are kept.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	endpoint := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create search request",
			goerr.T(domain.ErrTagSearchUnavailable), goerr.V("url", c.baseURL))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "search request failed",
			goerr.T(domain.ErrTagSearchUnavailable), goerr.V("url", c.baseURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("search backend returned error",
			goerr.T(domain.ErrTagSearchUnavailable),
			goerr.V("url", c.baseURL),
			goerr.V("status", resp.StatusCode))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search response",
			goerr.T(domain.ErrTagSearchUnavailable), goerr.V("url", c.baseURL))
	}

	urls := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if maxResults > 0 && len(urls) >= maxResults {
			break
		}
		if r.URL == "" {
			continue
		}
		urls = append(urls, r.URL)
	}
	return urls, nil
}
