package usecase

import (
	"context"

	"examprep/internal/domain"
	"examprep/internal/logger"
	"examprep/internal/port"
)

// RetrieveUseCase handles search operations.
type RetrieveUseCase struct {
	retriever port.Retriever
	topK      int
}

// NewRetrieveUseCase creates a new retrieve use case. topK is used when a
// caller passes k == 0.
func NewRetrieveUseCase(retriever port.Retriever, topK int) *RetrieveUseCase {
	if topK <= 0 {
		topK = 5
	}
	return &RetrieveUseCase{
		retriever: retriever,
		topK:      topK,
	}
}

// Retrieve returns ranked results for query.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k == 0 {
		k = u.topK
	}

	results, err := u.retriever.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}

	logger.Debug("retrieved", "query", query, "k", k, "results", len(results))
	return results, nil
}

// RetrieveTexts returns only the texts, most relevant first.
func (u *RetrieveUseCase) RetrieveTexts(ctx context.Context, query string, k int) ([]string, error) {
	results, err := u.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts, nil
}
