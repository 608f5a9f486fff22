package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/adapter/analyzer"
	"examprep/internal/adapter/embedding"
	"examprep/internal/adapter/memstore"
	"examprep/internal/adapter/retriever"
	"examprep/internal/domain"
)

type stubRetriever struct {
	results []domain.SearchResult
	err     error
	lastK   int
}

func (s *stubRetriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	res, err := s.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return retriever.Texts(res), nil
}

func (s *stubRetriever) SearchResults(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.results) {
		return s.results[:k], nil
	}
	return s.results, nil
}

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Tokenize(text string) []string { return strings.Fields(text) }
func (wordCounter) CountTokens(text string) int   { return len(strings.Fields(text)) }

func TestContextJoinsPassagesInRankOrder(t *testing.T) {
	r := &stubRetriever{results: []domain.SearchResult{
		{ID: "bookA_0", Text: "chlorophyll absorbs light", Distance: 0.1},
		{ID: "bookA_1", Text: "the calvin cycle fixes carbon", Distance: 0.2},
	}}

	pc := NewContextUseCase(r, wordCounter{}, 0).Build(context.Background(), "photosynthesis", 5)

	assert.False(t, pc.Degraded)
	assert.Equal(t, "photosynthesis", pc.Query)
	assert.Equal(t, "chlorophyll absorbs light\nthe calvin cycle fixes carbon", pc.Text)
	assert.Len(t, pc.Passages, 2)
	assert.Equal(t, 8, pc.UsedTokens)
	assert.Equal(t, 5, r.lastK)
}

func TestContextDegradesOnRetrievalFailure(t *testing.T) {
	r := &stubRetriever{err: &domain.EmbeddingServiceError{Provider: "gemini", Op: "request", Err: errors.New("503")}}

	pc := NewContextUseCase(r, wordCounter{}, 0).Build(context.Background(), "photosynthesis", 5)

	assert.True(t, pc.Degraded)
	assert.Contains(t, pc.Reason, "503")
	assert.Empty(t, pc.Text)
	assert.NotNil(t, pc.Passages)
	assert.Empty(t, pc.Passages)
}

func TestContextBudgetSkipsOversizedPassages(t *testing.T) {
	r := &stubRetriever{results: []domain.SearchResult{
		{ID: "a", Text: "one two three"},
		{ID: "b", Text: "four five six seven eight nine"},
		{ID: "c", Text: "ten eleven"},
	}}

	uc := NewContextUseCase(r, wordCounter{}, 100).WithBudget(5)
	pc := uc.Build(context.Background(), "q", 3)

	require.Len(t, pc.Passages, 2)
	assert.Equal(t, "a", pc.Passages[0].ID)
	assert.Equal(t, "c", pc.Passages[1].ID)
	assert.Equal(t, 5, pc.UsedTokens)
	assert.Equal(t, "one two three\nten eleven", pc.Text)
}

func TestContextOnEmptyCollection(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	sem := retriever.NewSemanticRetriever(store, embedding.NewMockEmbedder(16))

	pc := NewContextUseCase(sem, analyzer.NewTokenizer(), 0).Build(context.Background(), "photosynthesis", 5)

	assert.False(t, pc.Degraded)
	assert.Empty(t, pc.Text)
	assert.Empty(t, pc.Passages)
}

func TestRetrieveUsesDefaultTopK(t *testing.T) {
	r := &stubRetriever{results: []domain.SearchResult{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}}
	uc := NewRetrieveUseCase(r, 7)

	_, err := uc.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, r.lastK)

	texts, err := uc.RetrieveTexts(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, texts)
	assert.Equal(t, 1, r.lastK)
}

func TestRetrievePropagatesErrors(t *testing.T) {
	r := &stubRetriever{err: &domain.StoreError{Op: "query", Err: errors.New("io")}}

	_, err := NewRetrieveUseCase(r, 5).Retrieve(context.Background(), "q", 3)

	var storeErr *domain.StoreError
	assert.ErrorAs(t, err, &storeErr)
}
