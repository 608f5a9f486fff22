package port

import (
	"context"

	"examprep/internal/domain"
)

// Retriever returns the stored chunks most relevant to a query.
type Retriever interface {
	// Search returns the texts of the top-k chunks, most relevant first.
	Search(ctx context.Context, query string, k int) ([]string, error)

	// SearchResults is Search with ids, metadata and distances.
	SearchResults(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}
