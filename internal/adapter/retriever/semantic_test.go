package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/adapter/embedding"
	"examprep/internal/adapter/memstore"
	"examprep/internal/domain"
	"examprep/internal/port"
)

var _ port.Retriever = (*SemanticRetriever)(nil)

// recordingEmbedder wraps an embedder and remembers the task types it saw.
type recordingEmbedder struct {
	port.Embedder
	tasks []domain.TaskType
	err   error
}

func (e *recordingEmbedder) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	e.tasks = append(e.tasks, task)
	if e.err != nil {
		return nil, e.err
	}
	return e.Embedder.Embed(ctx, texts, task)
}

func seed(t *testing.T, emb port.Embedder, st port.VectorStore, texts map[string]string) {
	t.Helper()
	ctx := context.Background()
	for id, text := range texts {
		vecs, err := emb.Embed(ctx, []string{text}, domain.TaskDocument)
		require.NoError(t, err)
		require.NoError(t, st.Upsert(ctx, []domain.Chunk{{
			ID:        id,
			Text:      text,
			Metadata:  domain.Metadata{domain.MetaSource: "bio", domain.MetaType: "book"},
			Embedding: vecs[0],
		}}))
	}
}

func TestSearchReturnsMostRelevantFirst(t *testing.T) {
	mock := embedding.NewMockEmbedder(256)
	st := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, mock.ModelName())
	seed(t, mock, st, map[string]string{
		"bio_0": "photosynthesis converts light into chemical energy in chloroplasts",
		"bio_1": "mitosis divides the nucleus of a eukaryotic cell",
		"bio_2": "the krebs cycle releases stored energy through oxidation",
	})

	emb := &recordingEmbedder{Embedder: mock}
	r := NewSemanticRetriever(st, emb)

	texts, err := r.Search(context.Background(), "photosynthesis in chloroplasts", 2)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "photosynthesis")
	assert.Equal(t, []domain.TaskType{domain.TaskQuery}, emb.tasks)

	results, err := r.SearchResults(context.Background(), "photosynthesis in chloroplasts", 5)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "bio", results[0].Metadata.Source())
}

func TestSearchEmptyCollection(t *testing.T) {
	emb := &recordingEmbedder{Embedder: embedding.NewMockEmbedder(16)}
	r := NewSemanticRetriever(memstore.NewMemoryStore("exam_prep", "", ""), emb)

	texts, err := r.Search(context.Background(), "photosynthesis", 5)
	require.NoError(t, err)
	assert.NotNil(t, texts)
	assert.Empty(t, texts)
	assert.Empty(t, emb.tasks, "no embedding call for an empty collection")
}

func TestSearchInvalidInput(t *testing.T) {
	r := NewSemanticRetriever(memstore.NewMemoryStore("exam_prep", "", ""), embedding.NewMockEmbedder(16))

	_, err := r.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Search(context.Background(), "cells", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchSurfacesEmbeddingFailure(t *testing.T) {
	mock := embedding.NewMockEmbedder(16)
	st := memstore.NewMemoryStore("exam_prep", "", "")
	seed(t, mock, st, map[string]string{"bio_0": "cells"})

	svcErr := &domain.EmbeddingServiceError{Provider: "gemini", Op: "request", Err: errors.New("unreachable")}
	r := NewSemanticRetriever(st, &recordingEmbedder{Embedder: mock, err: svcErr})

	texts, err := r.Search(context.Background(), "cells", 3)
	assert.Nil(t, texts)
	var embErr *domain.EmbeddingServiceError
	assert.ErrorAs(t, err, &embErr)
}

func TestSearchSurfacesDimensionMismatch(t *testing.T) {
	st := memstore.NewMemoryStore("exam_prep", "", "")
	seed(t, embedding.NewMockEmbedder(16), st, map[string]string{"bio_0": "cells"})

	r := NewSemanticRetriever(st, embedding.NewMockEmbedder(32))
	_, err := r.Search(context.Background(), "cells", 3)

	var dimErr *domain.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}
