package domain

import "context"

// MemoryRecord is one stored document. The URL is its identity: upserting the
// same URL again replaces the previous record.
type MemoryRecord struct {
	URL    string
	Text   string
	Vector []float32
}

// Match is a record returned by a similarity search.
type Match struct {
	URL   string  `json:"url"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Metric is the distance metric a collection is created with.
type Metric string

// MetricCosine is the only metric the stores support.
const MetricCosine Metric = "Cosine"

// SourceState records how far a single search result got through ingestion.
type SourceState string

const (
	StateStored        SourceState = "stored"
	StateFetchFailed   SourceState = "fetch_failed"
	StateExtractFailed SourceState = "extract_failed"
	StateEmbedFailed   SourceState = "embed_failed"
	StateStoreFailed   SourceState = "store_failed"
)

// InContext reports whether text for the source made it into the context
// buffer. Persistence failures still contribute their text.
func (s SourceState) InContext() bool {
	switch s {
	case StateStored, StateEmbedFailed, StateStoreFailed:
		return true
	}
	return false
}

// SourceStatus is the per-URL outcome of an ingestion.
type SourceStatus struct {
	URL    string      `json:"url"`
	State  SourceState `json:"state"`
	Stored bool        `json:"stored"`
	Err    string      `json:"error,omitempty"`
}

// IngestionResult is returned by the ingestion pipeline. It is never persisted.
type IngestionResult struct {
	Query    string         `json:"query"`
	Sources  []string       `json:"sources"`
	Context  string         `json:"context"`
	Statuses []SourceStatus `json:"statuses"`
}

// RecallResult is returned by the recall pipeline, best match first.
type RecallResult struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchClient returns result URLs for a query in the backend's ranking order.
type SearchClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// Extractor fetches a URL and returns its readable text.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// VectorStore persists records and supports cosine nearest-neighbour search.
type VectorStore interface {
	Reset(ctx context.Context, dimension int, metric Metric) error
	Upsert(ctx context.Context, record MemoryRecord) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Close() error
}
