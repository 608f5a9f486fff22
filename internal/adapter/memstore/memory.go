// Package memstore is an in-memory VectorStore for tests and ephemeral runs.
// Nothing survives the process.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"examprep/internal/adapter/similarity"
	"examprep/internal/domain"
)

type MemoryStore struct {
	name   string
	metric domain.Metric
	model  string

	mu        sync.RWMutex
	dimension int
	chunks    map[string]domain.Chunk
	bySource  map[string]map[string]struct{}
	gen       uint64
}

func NewMemoryStore(name string, metric domain.Metric, model string) *MemoryStore {
	if metric == "" {
		metric = domain.MetricCosine
	}
	return &MemoryStore{
		name:     name,
		metric:   metric,
		model:    model,
		chunks:   make(map[string]domain.Chunk),
		bySource: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return ctx.Err()
	}
	return s.write(ctx, "", false, chunks)
}

func (s *MemoryStore) ReplaceSource(ctx context.Context, source string, chunks []domain.Chunk) error {
	if source == "" {
		return domain.Invalidf("empty source")
	}
	return s.write(ctx, source, true, chunks)
}

func (s *MemoryStore) write(ctx context.Context, source string, purge bool, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := domain.ValidateChunks(s.name, s.dimension, chunks)
	if err != nil {
		return err
	}

	if purge {
		for id := range s.bySource[source] {
			s.remove(id)
		}
	}
	for _, c := range chunks {
		s.remove(c.ID)
		s.chunks[c.ID] = domain.Chunk{
			ID:        c.ID,
			Text:      c.Text,
			Metadata:  c.Metadata.Clone(),
			Embedding: append([]float32(nil), c.Embedding...),
		}
		if src := c.Metadata.Source(); src != "" {
			if s.bySource[src] == nil {
				s.bySource[src] = make(map[string]struct{})
			}
			s.bySource[src][c.ID] = struct{}{}
		}
	}
	if s.dimension == 0 {
		s.dimension = dim
	}
	s.gen++
	return nil
}

func (s *MemoryStore) remove(id string) {
	c, ok := s.chunks[id]
	if !ok {
		return
	}
	delete(s.chunks, id)
	src := c.Metadata.Source()
	delete(s.bySource[src], id)
	if len(s.bySource[src]) == 0 {
		delete(s.bySource, src)
	}
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.Invalidf("k must be positive, got %d", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, &domain.DimensionMismatchError{Collection: s.name, Expected: s.dimension, Got: len(embedding)}
	}

	scored := make([]similarity.Scored, 0, len(s.chunks))
	for id, c := range s.chunks {
		scored = append(scored, similarity.Scored{ID: id, Distance: similarity.Distance(s.metric, embedding, c.Embedding)})
	}

	ranked := similarity.Rank(scored, k)
	results := make([]domain.SearchResult, len(ranked))
	for i, r := range ranked {
		c := s.chunks[r.ID]
		results[i] = domain.SearchResult{ID: r.ID, Text: c.Text, Metadata: c.Metadata.Clone(), Distance: r.Distance}
	}
	return results, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %q: %w", id, domain.ErrNotFound)
	}
	c.Metadata = c.Metadata.Clone()
	c.Embedding = append([]float32(nil), c.Embedding...)
	return c, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.remove(id)
	}
	s.gen++
	return nil
}

func (s *MemoryStore) DeleteSource(ctx context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.bySource[source])
	for id := range s.bySource[source] {
		s.remove(id)
	}
	if n > 0 {
		s.gen++
	}
	return n, nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *MemoryStore) Sources() []domain.SourceSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SourceSummary, 0, len(s.bySource))
	for src, ids := range s.bySource {
		out = append(out, domain.SourceSummary{Source: src, Chunks: len(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (s *MemoryStore) Info() domain.CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionInfo{
		Name:      s.name,
		Dimension: s.dimension,
		Metric:    s.metric,
		Model:     s.model,
		Count:     len(s.chunks),
	}
}

func (s *MemoryStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}
