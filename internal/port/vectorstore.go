package port

import (
	"context"

	"examprep/internal/domain"
)

// VectorStore is one persistent collection of chunks and their embeddings.
// Implementations must be safe to call from multiple goroutines; a reader
// never observes a partially written chunk.
type VectorStore interface {
	// Upsert writes or overwrites each chunk. The first write binds the
	// collection's embedding dimension.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// ReplaceSource removes every chunk whose source metadata equals source
	// and writes chunks in the same step.
	ReplaceSource(ctx context.Context, source string, chunks []domain.Chunk) error

	// Query returns up to k chunks ordered by ascending distance.
	Query(ctx context.Context, embedding []float32, k int) ([]domain.SearchResult, error)

	// Get returns a chunk by id.
	Get(ctx context.Context, id string) (domain.Chunk, error)

	// Delete removes chunks by id.
	Delete(ctx context.Context, ids []string) error

	// DeleteSource removes every chunk of a document and returns how many.
	DeleteSource(ctx context.Context, source string) (int, error)

	// Count returns the number of stored chunks.
	Count() int

	// Sources lists stored documents with their chunk counts.
	Sources() []domain.SourceSummary

	// Info describes the collection and its bound schema.
	Info() domain.CollectionInfo

	// Generation increases on every successful write.
	Generation() uint64
}
