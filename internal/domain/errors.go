package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a document type with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMetricMismatch indicates the configured distance metric differs from
	// the one a collection was created with.
	ErrMetricMismatch = errors.New("distance metric mismatch")

	// ErrClosed indicates the store handle has been closed.
	ErrClosed = errors.New("store closed")

	// ErrNotFound indicates a requested chunk does not exist.
	ErrNotFound = errors.New("not found")
)

// Invalidf builds an ErrInvalidInput error with context.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ExtractionError reports a malformed or unreadable source document.
// Page is 1-based, or 0 when the failure concerns the whole document.
type ExtractionError struct {
	Path string
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("extract %s (page %d): %v", e.Path, e.Page, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingServiceError reports a failed or malformed call to the remote
// embedding service.
type EmbeddingServiceError struct {
	Provider string
	Op       string
	Timeout  bool
	Err      error
}

func (e *EmbeddingServiceError) Error() string {
	msg := fmt.Sprintf("embedding service %s: %s: %v", e.Provider, e.Op, e.Err)
	if e.Timeout {
		msg += " (timeout)"
	}
	return msg
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose length differs from the
// dimension a collection was bound to.
type DimensionMismatchError struct {
	Collection string
	Expected   int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection %q: embedding dimension mismatch: expected %d, got %d",
		e.Collection, e.Expected, e.Got)
}

// StoreError reports a persistence-layer failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsRetryable reports whether err belongs to a retryable class: embedding
// service failures, store I/O failures and deadline expiry. Extraction,
// dimension and input errors need a change before a retry can succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var dimErr *DimensionMismatchError
	if errors.As(err, &dimErr) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMetricMismatch) {
		return false
	}
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return false
	}
	var embErr *EmbeddingServiceError
	if errors.As(err, &embErr) {
		return true
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return !errors.Is(err, ErrClosed)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Kind names the error class for reports: extraction, embedding, dimension,
// store, invalid, canceled or other.
func Kind(err error) string {
	var (
		extErr   *ExtractionError
		embErr   *EmbeddingServiceError
		dimErr   *DimensionMismatchError
		storeErr *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &extErr):
		return "extraction"
	case errors.As(err, &embErr):
		return "embedding"
	case errors.As(err, &dimErr):
		return "dimension"
	case errors.As(err, &storeErr):
		return "store"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMetricMismatch):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
