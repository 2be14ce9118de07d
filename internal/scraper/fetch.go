package scraper

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/html/charset"

	"webrag/internal/domain"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 5 << 20
	DefaultUserAgent    = "Mozilla/5.0 (compatible; webrag-scraper/1.0)"
)

// Fetcher downloads pages and reduces them to readable text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

type FetcherConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
}

// Fetch downloads target and returns its readable text. Bodies larger than
// the limit are cut at the limit and extracted as far as they go.
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", goerr.Wrap(err, "invalid target url", goerr.T(domain.ErrTagFetch), goerr.V("url", target))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch page", goerr.T(domain.ErrTagFetch), goerr.V("url", target))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", goerr.New("page returned error status",
			goerr.T(domain.ErrTagFetch),
			goerr.V("url", target),
			goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read page body", goerr.T(domain.ErrTagFetch), goerr.V("url", target))
	}

	contentType := resp.Header.Get("Content-Type")
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode page charset",
			goerr.T(domain.ErrTagExtract), goerr.V("url", target), goerr.V("content_type", contentType))
	}

	if isPlainText(contentType) {
		decoded, err := io.ReadAll(r)
		if err != nil {
			return "", goerr.Wrap(err, "failed to decode page", goerr.T(domain.ErrTagExtract), goerr.V("url", target))
		}
		text := normalizeLines(string(decoded))
		if text == "" {
			return "", goerr.New("empty page", goerr.T(domain.ErrTagExtract), goerr.V("url", target))
		}
		return text, nil
	}

	pageURL, _ := url.Parse(target)
	text, err := ReadableText(r, pageURL)
	if err != nil {
		return "", goerr.Wrap(err, "failed to extract page text", goerr.V("url", target))
	}
	return text, nil
}

func isPlainText(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, "text/plain")
}
