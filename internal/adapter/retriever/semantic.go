package retriever

import (
	"context"
	"fmt"
	"strings"

	"examprep/internal/domain"
	"examprep/internal/port"
)

// SemanticRetriever embeds a query with the query task type and returns the
// nearest stored chunks. Failures are surfaced, never replaced by an empty
// result; degrading is the caller's decision.
type SemanticRetriever struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
}

func NewSemanticRetriever(vectorStore port.VectorStore, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
	}
}

// Search returns the texts of the k most relevant chunks, best first.
func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return Texts(results), nil
}

// SearchResults is Search with ids, metadata and distances.
func (r *SemanticRetriever) SearchResults(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Invalidf("empty query")
	}
	if k <= 0 {
		return nil, domain.Invalidf("k must be positive, got %d", k)
	}

	// Nothing to rank; skip the embedding call.
	if r.vectorStore.Count() == 0 {
		return []domain.SearchResult{}, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query}, domain.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, &domain.EmbeddingServiceError{
			Provider: r.embedder.ModelName(),
			Op:       "embed query",
			Err:      fmt.Errorf("expected 1 vector, got %d", len(embeddings)),
		}
	}

	results, err := r.vectorStore.Query(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// Texts keeps only the chunk texts, preserving order.
func Texts(results []domain.SearchResult) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}
