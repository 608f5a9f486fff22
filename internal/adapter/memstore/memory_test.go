package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/domain"
	"examprep/internal/port"
)

var _ port.VectorStore = (*MemoryStore)(nil)

func chunk(id, source string, vec ...float32) domain.Chunk {
	return domain.Chunk{
		ID:        id,
		Text:      id,
		Metadata:  domain.Metadata{domain.MetaSource: source},
		Embedding: vec,
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("exam_prep", "", "mock")

	results, err := s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Upsert(ctx, []domain.Chunk{
		chunk("a_0", "a", 1, 0),
		chunk("a_1", "a", 0, 1),
	}))

	results, err = s.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a_1", results[0].ID)

	_, err = s.Query(ctx, []float32{0, 1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("exam_prep", domain.MetricCosine, "")
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a_0", "a", 1, 0)}))

	err := s.Upsert(ctx, []domain.Chunk{chunk("b_0", "b", 1, 0, 0)})
	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 1, s.Count())
}

func TestMemoryStoreReplaceSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("exam_prep", domain.MetricL2, "")
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{
		chunk("a_0", "a", 1),
		chunk("a_1", "a", 2),
		chunk("b_0", "b", 3),
	}))

	require.NoError(t, s.ReplaceSource(ctx, "a", []domain.Chunk{chunk("a_0", "a", 4)}))
	assert.Equal(t, []domain.SourceSummary{{Source: "a", Chunks: 1}, {Source: "b", Chunks: 1}}, s.Sources())

	n, err := s.DeleteSource(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Count())

	_, err = s.Get(ctx, "b_0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
