package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/adapter/similarity"
	"examprep/internal/domain"
)

func TestMockEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"Photosynthesis converts light energy"}, domain.TaskDocument)
	require.NoError(t, err)
	b, err := e.Embed(ctx, []string{"Photosynthesis converts light energy"}, domain.TaskQuery)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a[0], 32)

	var norm float64
	for _, v := range a[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestMockEmbedderSimilarity(t *testing.T) {
	e := NewMockEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"photosynthesis in plant cells",
		"plant cells and photosynthesis",
		"the french revolution began in 1789",
	}, domain.TaskDocument)
	require.NoError(t, err)

	near := similarity.CosineSimilarity(vecs[0], vecs[1])
	far := similarity.CosineSimilarity(vecs[0], vecs[2])
	assert.Greater(t, near, far)
}

func TestMockEmbedderNoWords(t *testing.T) {
	vecs, err := NewMockEmbedder(8).Embed(context.Background(), []string{"   "}, domain.TaskDocument)
	require.NoError(t, err)
	assert.Equal(t, float32(1), vecs[0][0])
}
