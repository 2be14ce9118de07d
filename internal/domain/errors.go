package domain

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures of the external collaborators. Callers branch
// on them with goerr.HasTag. ErrTagEmbedding marks input the embedder rejects
// or a vector of the wrong size; ErrTagEmbedderUnavailable marks a model
// backend that could not answer.
var (
	ErrTagSearchUnavailable   = goerr.NewTag("search_unavailable")
	ErrTagFetch               = goerr.NewTag("fetch_error")
	ErrTagExtract             = goerr.NewTag("extract_error")
	ErrTagEmbedding           = goerr.NewTag("embedding_error")
	ErrTagEmbedderUnavailable = goerr.NewTag("embedder_unavailable")
	ErrTagStore               = goerr.NewTag("store_error")
)
