package port

import (
	"context"

	"examprep/internal/domain"
)

// Embedder generates vector embeddings for text.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns one vector per input text, in input order. Document
	// chunks are embedded with domain.TaskDocument, search queries with
	// domain.TaskQuery.
	Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
