package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/domain"
	"webrag/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client. It also understands the
// Ollama response shape, so it works against a local Ollama server.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	maxChars  int
	client    *http.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL       string
	APIKeyEnv     string
	Model         string
	Dimension     int
	MaxInputChars int
	Timeout       time.Duration
}

// NewClient creates a new embeddings client. The API key is optional so that
// keyless local servers can be used.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		return nil, goerr.New("openai embedder requires a dimension", goerr.V("model", cfg.Model))
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    key,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxChars:  cfg.MaxInputChars,
		client:    &http.Client{Timeout: t},
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the configured dimensionality of the embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text. The call is attempted
// once.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.CheckInput(text, c.maxChars); err != nil {
		return nil, err
	}

	type reqBody struct {
		Input  string `json:"input,omitempty"`
		Prompt string `json:"prompt,omitempty"`
		Model  string `json:"model"`
	}
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal embedding request", goerr.T(domain.ErrTagEmbedderUnavailable))
	}
	url := c.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding request", goerr.T(domain.ErrTagEmbedderUnavailable))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "embedding request failed",
			goerr.T(domain.ErrTagEmbedderUnavailable), goerr.V("url", url))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read embedding response", goerr.T(domain.ErrTagEmbedderUnavailable))
	}
	if resp.StatusCode >= 300 {
		return nil, goerr.New("embedding endpoint returned error",
			goerr.T(domain.ErrTagEmbedderUnavailable),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(truncateBody(payload))))
	}

	vec, err := decodeEmbedding(payload)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimension(vec, c.dimension); err != nil {
		return nil, goerr.Wrap(err, "embedding model returned unexpected dimension", goerr.V("model", c.model))
	}
	return vec, nil
}

// decodeEmbedding accepts the OpenAI shape {"data":[{"embedding":[...]}]} and
// the Ollama shape {"embedding":[...]}.
func decodeEmbedding(payload []byte) ([]float32, error) {
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode embedding response", goerr.T(domain.ErrTagEmbedderUnavailable))
	}
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return out.Data[0].Embedding, nil
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	return nil, goerr.New("no embedding returned", goerr.T(domain.ErrTagEmbedderUnavailable))
}

func truncateBody(b []byte) []byte {
	const max = 512
	if len(b) > max {
		return b[:max]
	}
	return b
}
