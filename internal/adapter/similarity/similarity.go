// Package similarity holds the distance metrics and top-k ranking shared by
// the vector store implementations.
package similarity

import (
	"math"
	"sort"

	"examprep/internal/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Distance returns the distance between a and b under metric; smaller is
// closer. Cosine distance is 1 - cosine similarity.
func Distance(metric domain.Metric, a, b []float32) float64 {
	if metric == domain.MetricL2 {
		return EuclideanDistance(a, b)
	}
	return 1 - CosineSimilarity(a, b)
}

// Scored pairs a chunk id with its distance to a query.
type Scored struct {
	ID       string
	Distance float64
}

// Rank orders candidates by ascending distance, breaking ties by id so the
// result is deterministic, and keeps at most k.
func Rank(candidates []Scored, k int) []Scored {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}
