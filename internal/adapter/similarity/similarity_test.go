package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"examprep/internal/domain"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 5.0, EuclideanDistance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.True(t, math.IsInf(EuclideanDistance([]float32{1}, []float32{1, 2}), 1))
}

func TestDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 2}

	assert.InDelta(t, 1.0, Distance(domain.MetricCosine, a, b), 1e-9)
	assert.InDelta(t, math.Sqrt(5), Distance(domain.MetricL2, a, b), 1e-9)
	assert.InDelta(t, 0.0, Distance(domain.MetricCosine, a, a), 1e-9)
}

func TestRank(t *testing.T) {
	candidates := []Scored{
		{ID: "c", Distance: 0.5},
		{ID: "a", Distance: 0.1},
		{ID: "d", Distance: 0.5},
		{ID: "b", Distance: 0.5},
	}

	ranked := Rank(candidates, 3)

	assert.Equal(t, []Scored{
		{ID: "a", Distance: 0.1},
		{ID: "b", Distance: 0.5},
		{ID: "c", Distance: 0.5},
	}, ranked)
}

func TestRankFewerThanK(t *testing.T) {
	ranked := Rank([]Scored{{ID: "x", Distance: 1}}, 10)
	assert.Len(t, ranked, 1)

	assert.Empty(t, Rank(nil, 5))
}
