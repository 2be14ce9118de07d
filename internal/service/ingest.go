package service

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"webrag/internal/domain"
	"webrag/internal/logging"
	"webrag/internal/textproc"
)

const (
	DefaultMaxResults   = 5
	DefaultContextLimit = 15000
	DefaultConcurrency  = 4
)

type IngestOptions struct {
	MaxResults   int
	ContextLimit int
	Concurrency  int
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.ContextLimit <= 0 {
		o.ContextLimit = DefaultContextLimit
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// IngestPipeline searches the web for a query, extracts each result, stores
// it in vector memory and assembles a bounded context string.
type IngestPipeline struct {
	search    domain.SearchClient
	extractor domain.Extractor
	embedder  domain.Embedder
	store     domain.VectorStore
	opts      IngestOptions
}

func NewIngestPipeline(search domain.SearchClient, extractor domain.Extractor, embedder domain.Embedder, store domain.VectorStore, opts IngestOptions) *IngestPipeline {
	return &IngestPipeline{
		search:    search,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		opts:      opts.withDefaults(),
	}
}

type outcome struct {
	text   string
	status domain.SourceStatus
}

// Ingest never fails: an unavailable search backend yields no sources and
// per-URL failures are reported in Statuses.
func (p *IngestPipeline) Ingest(ctx context.Context, query string) *domain.IngestionResult {
	logger := logging.From(ctx)

	urls, err := p.search.Search(ctx, query, p.opts.MaxResults)
	if err != nil {
		logger.Warn("search unavailable, continuing without sources", "query", query, "error", err)
		urls = nil
	}
	if len(urls) > p.opts.MaxResults {
		urls = urls[:p.opts.MaxResults]
	}

	outcomes := make([]outcome, len(urls))
	var eg errgroup.Group
	eg.SetLimit(p.opts.Concurrency)
	for i, u := range urls {
		eg.Go(func() error {
			outcomes[i] = p.process(ctx, u)
			return nil
		})
	}
	_ = eg.Wait()

	var sb strings.Builder
	statuses := make([]domain.SourceStatus, len(outcomes))
	stored := 0
	for i, o := range outcomes {
		statuses[i] = o.status
		if o.status.Stored {
			stored++
		}
		if !o.status.State.InContext() {
			continue
		}
		sb.WriteString("SOURCE: ")
		sb.WriteString(o.status.URL)
		sb.WriteString("\n")
		sb.WriteString(o.text)
		sb.WriteString("\n")
	}

	logger.Info("ingestion finished", "query", query, "sources", len(urls), "stored", stored)

	sources := make([]string, len(urls))
	copy(sources, urls)
	return &domain.IngestionResult{
		Query:    query,
		Sources:  sources,
		Context:  textproc.Truncate(sb.String(), p.opts.ContextLimit),
		Statuses: statuses,
	}
}

// process runs extract, embed and upsert for one URL. The extracted text is
// kept even when persistence fails.
func (p *IngestPipeline) process(ctx context.Context, url string) outcome {
	logger := logging.From(ctx).With("url", url)
	o := outcome{status: domain.SourceStatus{URL: url}}

	text, err := p.extractor.Extract(ctx, url)
	if err == nil && strings.TrimSpace(text) == "" {
		err = goerr.New("extractor returned no text", goerr.T(domain.ErrTagExtract))
	}
	if err != nil {
		o.status.State = domain.StateFetchFailed
		if goerr.HasTag(err, domain.ErrTagExtract) {
			o.status.State = domain.StateExtractFailed
		}
		o.status.Err = err.Error()
		logger.Warn("skipping source", "state", o.status.State, "error", err)
		return o
	}
	o.text = text

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		o.status.State = domain.StateEmbedFailed
		o.status.Err = err.Error()
		logger.Warn("failed to embed source", "error", err)
		return o
	}

	record := domain.MemoryRecord{URL: url, Text: text, Vector: vec}
	if err := p.store.Upsert(ctx, record); err != nil {
		o.status.State = domain.StateStoreFailed
		o.status.Err = err.Error()
		logger.Warn("failed to store source", "error", err)
		return o
	}

	o.status.State = domain.StateStored
	o.status.Stored = true
	return o
}
