// Package extract is the client for the scrape service.
package extract

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

// Response is the scrape service payload.
type Response struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Extract asks the scrape service for the readable text of target.
// Transport problems and service-reported errors are tagged ErrTagFetch; an
// unreadable payload or empty content is tagged ErrTagExtract.
func (c *Client) Extract(ctx context.Context, target string) (string, error) {
	q := url.Values{}
	q.Set("url", target)
	endpoint := c.baseURL + "/scrape?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create scrape request",
			goerr.T(domain.ErrTagFetch), goerr.V("url", target))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "scrape request failed",
			goerr.T(domain.ErrTagFetch), goerr.V("url", target))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", goerr.New("scrape service returned error",
			goerr.T(domain.ErrTagFetch),
			goerr.V("url", target),
			goerr.V("status", resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", goerr.Wrap(err, "failed to decode scrape response",
			goerr.T(domain.ErrTagExtract), goerr.V("url", target))
	}
	if out.Error != "" {
		return "", goerr.New("scrape failed",
			goerr.T(domain.ErrTagFetch),
			goerr.V("url", target),
			goerr.V("reason", out.Error))
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", goerr.New("no readable content",
			goerr.T(domain.ErrTagExtract), goerr.V("url", target))
	}
	return out.Content, nil
}
