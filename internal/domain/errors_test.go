package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"embedding", &EmbeddingServiceError{Provider: "gemini", Op: "request", Err: errors.New("503")}, true},
		{"wrapped embedding", fmt.Errorf("ingest bookA: %w", &EmbeddingServiceError{Err: errors.New("x")}), true},
		{"store io", &StoreError{Op: "upsert", Err: errors.New("disk full")}, true},
		{"store closed", &StoreError{Op: "upsert", Err: ErrClosed}, false},
		{"extraction", &ExtractionError{Path: "a.pdf", Err: errors.New("bad xref")}, false},
		{"dimension", &DimensionMismatchError{Collection: "c", Expected: 768, Got: 3}, false},
		{"invalid", Invalidf("k must be positive"), false},
		{"metric", fmt.Errorf("%w: cosine vs l2", ErrMetricMismatch), false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "extraction", Kind(&ExtractionError{Path: "x.pptx", Err: ErrUnsupportedFormat}))
	assert.Equal(t, "embedding", Kind(&EmbeddingServiceError{Err: errors.New("x")}))
	assert.Equal(t, "dimension", Kind(&DimensionMismatchError{}))
	assert.Equal(t, "store", Kind(&StoreError{Op: "open", Err: errors.New("locked")}))
	assert.Equal(t, "invalid", Kind(Invalidf("empty query")))
	assert.Equal(t, "canceled", Kind(context.Canceled))
	assert.Equal(t, "other", Kind(errors.New("boom")))
}

func TestErrorMessages(t *testing.T) {
	err := &ExtractionError{Path: "book.pdf", Page: 3, Err: errors.New("bad font")}
	assert.Equal(t, "extract book.pdf (page 3): bad font", err.Error())

	emb := &EmbeddingServiceError{Provider: "gemini", Op: "request", Timeout: true, Err: context.DeadlineExceeded}
	assert.Contains(t, emb.Error(), "(timeout)")
	assert.ErrorIs(t, emb, context.DeadlineExceeded)

	dim := &DimensionMismatchError{Collection: "exam_prep", Expected: 768, Got: 1536}
	assert.Contains(t, dim.Error(), "expected 768, got 1536")
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	assert.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("Euclidean")
	assert.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	_, err = ParseMetric("dot")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMetadataClone(t *testing.T) {
	md := Metadata{MetaSource: "bookA", MetaType: "book"}
	c := md.Clone()
	c[MetaSource] = "bookB"

	assert.Equal(t, "bookA", md.Source())
	assert.Equal(t, "book", c.Type())
	assert.NotNil(t, Metadata(nil).Clone())
}

func TestValidateChunks(t *testing.T) {
	dim, err := ValidateChunks("c", 0, []Chunk{
		{ID: "a", Text: "t", Embedding: []float32{1, 2}},
		{ID: "b", Text: "t", Embedding: []float32{3, 4}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = ValidateChunks("c", 3, []Chunk{{ID: "a", Text: "t", Embedding: []float32{1}}})
	var dimErr *DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}
