// Package extractor pulls page text out of source documents.
package extractor

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"examprep/internal/domain"
	"examprep/internal/port"
)

// Registry picks an extractor by file extension.
type Registry struct {
	byExt map[string]port.Extractor
}

// NewRegistry returns a registry with the PDF and plain-text extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]port.Extractor)}

	r.Register(NewPDFExtractor(), ".pdf")
	r.Register(NewTextExtractor(), ".txt", ".text", ".md", ".markdown")

	return r
}

// Register maps extensions (with leading dot, any case) to ex.
func (r *Registry) Register(ex port.Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = ex
	}
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract dispatches to the extractor registered for path's extension.
func (r *Registry) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := r.byExt[ext]
	if !ok {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: domain.ErrUnsupportedFormat}
	}
	return ex.Extract(ctx, path)
}
