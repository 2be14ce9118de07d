package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"webrag/internal/config"
	"webrag/internal/domain"
	"webrag/internal/embedding/cache"
	"webrag/internal/embedding/gemini"
	"webrag/internal/embedding/hashing"
	"webrag/internal/embedding/openai"
	"webrag/internal/extract"
	"webrag/internal/logging"
	"webrag/internal/search/searxng"
	"webrag/internal/service"
	"webrag/internal/vectorstore/chromem"
	"webrag/internal/vectorstore/qdrant"
	"webrag/internal/vectorstore/sqlite"
)

const probeText = "dimension probe"

// deps holds the constructed collaborators of both pipelines.
type deps struct {
	embedder  domain.Embedder
	store     domain.VectorStore
	search    domain.SearchClient
	extractor domain.Extractor
	closers   []func()
}

// buildDeps constructs every collaborator, checks the embedder against its
// configured dimension and resets the collection.
func buildDeps(ctx context.Context, cfg *config.AppConfig) (*deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config")
	}
	d := &deps{}

	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.CacheMB > 0 {
		cached, err := cache.New(emb, cfg.Embedder.CacheMB)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, cached.Close)
		emb = cached
	}
	d.embedder = emb

	if err := probeDimension(ctx, emb); err != nil {
		d.Close()
		return nil, err
	}

	store, err := newStore(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.store = store
	d.closers = append(d.closers, func() {
		if err := store.Close(); err != nil {
			logging.From(ctx).Warn("failed to close vector store", "error", err)
		}
	})

	if err := store.Reset(ctx, emb.Dimension(), domain.MetricCosine); err != nil {
		d.Close()
		return nil, goerr.Wrap(err, "failed to reset vector store", goerr.V("type", cfg.VectorStore.Type))
	}

	d.search = searxng.NewClient(searxng.Config{
		URL:     cfg.Search.URL,
		Timeout: config.Seconds(cfg.Search.TimeoutSecs),
	})
	d.extractor = extract.NewClient(extract.Config{
		URL:     cfg.Extractor.URL,
		Timeout: config.Seconds(cfg.Extractor.TimeoutSecs),
	})

	logging.From(ctx).Info("components ready",
		"embedder", emb.Name(),
		"dimension", emb.Dimension(),
		"store", cfg.VectorStore.Type,
		"collection", cfg.VectorStore.Collection,
	)
	return d, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) pipelines(cfg *config.AppConfig) (*service.IngestPipeline, *service.RecallPipeline) {
	ingest := service.NewIngestPipeline(d.search, d.extractor, d.embedder, d.store, service.IngestOptions{
		MaxResults:   cfg.Search.MaxResults,
		ContextLimit: cfg.Pipeline.ContextLimit,
		Concurrency:  cfg.Pipeline.Concurrency,
	})
	recall := service.NewRecallPipeline(d.embedder, d.store, service.RecallOptions{
		Limit:        cfg.Pipeline.RecallLimit,
		SnippetLimit: cfg.Pipeline.SnippetLimit,
	})
	return ingest, recall
}

func newEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	ec := cfg.Embedder
	switch ec.Type {
	case "hashing":
		return hashing.NewEmbedder(hashing.Config{Dimension: ec.Dimension, MaxInputChars: ec.MaxInputChars}), nil
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:       ec.OpenAI.BaseURL,
			APIKeyEnv:     ec.OpenAI.APIKeyEnv,
			Model:         ec.OpenAI.Model,
			Dimension:     ec.Dimension,
			MaxInputChars: ec.MaxInputChars,
			Timeout:       config.Seconds(ec.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, goerr.Wrap(err, "openai embedder init failed")
		}
		return client, nil
	case "gemini":
		e, err := gemini.NewEmbedder(ctx, gemini.Config{
			APIKeyEnv:     ec.Gemini.APIKeyEnv,
			Project:       ec.Gemini.Project,
			Location:      ec.Gemini.Location,
			Model:         ec.Gemini.Model,
			Dimension:     ec.Dimension,
			MaxInputChars: ec.MaxInputChars,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "gemini embedder init failed")
		}
		return e, nil
	default:
		return nil, goerr.New("unknown embedder", goerr.V("type", ec.Type))
	}
}

func newStore(cfg *config.AppConfig) (domain.VectorStore, error) {
	vc := cfg.VectorStore
	switch vc.Type {
	case "memory":
		return chromem.NewStorage(chromem.Config{
			Collection: vc.Collection,
			Path:       vc.Chromem.Path,
			Compress:   vc.Chromem.Compress,
		})
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        vc.Qdrant.URL,
			APIKey:     vc.Qdrant.APIKey,
			Collection: vc.Collection,
			Timeout:    config.Seconds(vc.Qdrant.TimeoutSecs),
		}), nil
	case "sqlite":
		return sqlite.NewStorage(sqlite.Config{Path: vc.SQLite.Path})
	default:
		return nil, goerr.New("unknown vector store", goerr.V("type", vc.Type))
	}
}

// probeDimension embeds a fixed text once so a model whose output does not
// match the configured dimension fails at startup instead of on every upsert.
func probeDimension(ctx context.Context, emb domain.Embedder) error {
	vec, err := emb.Embed(ctx, probeText)
	if err != nil {
		return goerr.Wrap(err, "embedder probe failed", goerr.V("embedder", emb.Name()))
	}
	if len(vec) != emb.Dimension() {
		return goerr.New("embedder dimension does not match configuration",
			goerr.V("embedder", emb.Name()),
			goerr.V("configured", emb.Dimension()),
			goerr.V("actual", len(vec)))
	}
	return nil
}
