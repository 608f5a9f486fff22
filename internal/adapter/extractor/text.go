package extractor

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"examprep/internal/domain"
)

// TextExtractor reads plain text and markdown. Form feeds mark page breaks
// and stay attached to the page they end.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: err}
	}

	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "�")
	}
	if content == "" {
		return domain.Extraction{}, nil
	}

	return domain.Extraction{Pages: strings.SplitAfter(content, "\f")}, nil
}
