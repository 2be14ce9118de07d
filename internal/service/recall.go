package service

import (
	"context"

	"webrag/internal/domain"
	"webrag/internal/logging"
	"webrag/internal/textproc"
)

const (
	DefaultRecallLimit  = 5
	DefaultSnippetLimit = 2000
)

type RecallOptions struct {
	Limit        int
	SnippetLimit int
}

func (o RecallOptions) withDefaults() RecallOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultRecallLimit
	}
	if o.SnippetLimit <= 0 {
		o.SnippetLimit = DefaultSnippetLimit
	}
	return o
}

// RecallPipeline looks up previously ingested text semantically.
type RecallPipeline struct {
	embedder domain.Embedder
	store    domain.VectorStore
	opts     RecallOptions
}

func NewRecallPipeline(embedder domain.Embedder, store domain.VectorStore, opts RecallOptions) *RecallPipeline {
	return &RecallPipeline{embedder: embedder, store: store, opts: opts.withDefaults()}
}

// Recall returns the closest stored records, best first. Only an embedding
// failure is returned; a store failure is logged and yields no matches.
func (p *RecallPipeline) Recall(ctx context.Context, query string) (*domain.RecallResult, error) {
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	found, err := p.store.Search(ctx, vec, p.opts.Limit)
	if err != nil {
		logging.From(ctx).Error("memory search failed", "query", query, "error", err)
		found = nil
	}
	if len(found) > p.opts.Limit {
		found = found[:p.opts.Limit]
	}

	matches := make([]domain.Match, len(found))
	for i, m := range found {
		matches[i] = domain.Match{
			URL:   m.URL,
			Text:  textproc.Truncate(m.Text, p.opts.SnippetLimit),
			Score: m.Score,
		}
	}
	return &domain.RecallResult{Query: query, Matches: matches}, nil
}
