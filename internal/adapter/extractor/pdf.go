package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"examprep/internal/domain"
)

// PDFExtractor reads a PDF page by page. A page whose content cannot be
// decoded contributes an empty string and is recorded in FailedPages; only
// an unreadable file as a whole fails the extraction.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (domain.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: err}
	}

	reader, err := openReader(f, info.Size())
	if err != nil {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: err}
	}

	numPages, err := pageCount(reader)
	if err != nil {
		return domain.Extraction{}, &domain.ExtractionError{Path: path, Err: err}
	}

	var out domain.Extraction
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Extraction{}, err
		}

		text, err := pageText(reader, i, fonts)
		if err != nil {
			out.FailedPages = append(out.FailedPages, i)
			text = ""
		}
		if text != "" && !strings.HasSuffix(text, "\n") {
			// Keep words at page boundaries from fusing.
			text += "\n"
		}
		out.Pages = append(out.Pages, text)
	}

	return out, nil
}

// openReader parses the trailer. The parser panics on some truncated files.
func openReader(f *os.File, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return pdf.NewReader(f, size)
}

func pageCount(reader *pdf.Reader) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed page tree: %v", r)
		}
	}()
	return reader.NumPage(), nil
}

// pageText extracts one page, caching fonts across pages so charmaps are
// parsed once.
func pageText(reader *pdf.Reader, num int, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() || page.V.Key("Contents").IsNull() {
		return "", nil
	}

	for _, name := range page.Fonts() {
		if _, ok := fonts[name]; !ok {
			font := page.Font(name)
			fonts[name] = &font
		}
	}

	return page.GetPlainText(fonts)
}
