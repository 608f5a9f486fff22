package domain

import (
	"strings"
	"time"
)

// Well-known metadata keys attached to every chunk of a document.
const (
	MetaSource = "source"
	MetaType   = "type"
)

// Metadata is the flat string-to-string mapping stored alongside each chunk.
type Metadata map[string]string

// Source returns the document identifier.
func (m Metadata) Source() string {
	return m[MetaSource]
}

// Type returns the free-form document classification (e.g. "book").
func (m Metadata) Type() string {
	return m[MetaType]
}

// Clone returns an independent copy so callers can't mutate stored metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TaskType tags how a text is embedded.
type TaskType int

const (
	// TaskDocument is used when embedding chunks for storage.
	TaskDocument TaskType = iota
	// TaskQuery is used when embedding a search query.
	TaskQuery
)

func (t TaskType) String() string {
	switch t {
	case TaskDocument:
		return "document"
	case TaskQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Metric is the distance function a collection is bound to.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// ParseMetric validates a configured metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricL2, "euclidean":
		return MetricL2, nil
	default:
		return "", Invalidf("unknown distance metric %q", s)
	}
}

// Chunk is a contiguous slice of a source document's text, the unit of
// storage and retrieval.
type Chunk struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// SearchResult is a stored chunk ranked by distance to a query vector.
type SearchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata,omitempty"`
	Distance float64  `json:"distance"`
}

// Extraction is the text pulled from a source document, one entry per page
// in document order. Pages that failed to extract are empty and listed in
// FailedPages (1-based).
type Extraction struct {
	Pages       []string
	FailedPages []int
}

// Text concatenates all pages in order.
func (e Extraction) Text() string {
	return strings.Join(e.Pages, "")
}

// CollectionInfo describes a collection and its bound schema.
type CollectionInfo struct {
	Name      string    `json:"name"`
	ID        string    `json:"id,omitempty"`
	Dimension int       `json:"dimension"`
	Metric    Metric    `json:"metric"`
	Model     string    `json:"model,omitempty"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Bound reports whether the embedding dimension has been established.
func (c CollectionInfo) Bound() bool {
	return c.Dimension > 0
}

// SourceSummary counts the chunks stored for one document.
type SourceSummary struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}
