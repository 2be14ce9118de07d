package gemini

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"webrag/internal/domain"
	"webrag/internal/embedding"
)

// Embedder calls the Gemini embedding API, either with an API key or through
// Vertex AI.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
	maxChars  int
}

type Config struct {
	APIKeyEnv     string
	Project       string
	Location      string
	Model         string
	Dimension     int
	MaxInputChars int
}

// NewEmbedder creates a genai client. When the API key variable is set the
// Gemini API is used; otherwise Project and Location select Vertex AI.
func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.Dimension <= 0 {
		return nil, goerr.New("gemini embedder requires a dimension")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}

	cc := &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: cfg.Project, Location: cfg.Location}
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			cc = &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: key}
		}
	}
	if cc.Backend == genai.BackendVertexAI && cc.Project == "" {
		return nil, goerr.New("gemini embedder needs an API key or a Vertex AI project",
			goerr.V("api_key_env", cfg.APIKeyEnv))
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return &Embedder{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxChars:  cfg.MaxInputChars,
	}, nil
}

func (e *Embedder) Name() string { return "gemini" }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.CheckInput(text, e.maxChars); err != nil {
		return nil, err
	}

	dim := int32(e.dimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content",
			goerr.T(domain.ErrTagEmbedderUnavailable), goerr.V("model", e.model))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, goerr.New("no embedding returned",
			goerr.T(domain.ErrTagEmbedderUnavailable), goerr.V("model", e.model))
	}

	vec := resp.Embeddings[0].Values
	if err := embedding.CheckDimension(vec, e.dimension); err != nil {
		return nil, err
	}
	// Reduced-dimension Gemini embeddings are not normalised by the API.
	return embedding.Normalize(vec), nil
}
