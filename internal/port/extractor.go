package port

import (
	"context"

	"examprep/internal/domain"
)

// Extractor pulls page text out of a source document.
type Extractor interface {
	Extract(ctx context.Context, path string) (domain.Extraction, error)
}
