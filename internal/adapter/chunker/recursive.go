package chunker

import "strings"

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order: paragraph, line, word. The empty
// separator is the per-character fallback.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Span is a half-open [Start, End) range of rune offsets into the input.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in runes.
func (s Span) Len() int {
	return s.End - s.Start
}

// RecursiveSplitter splits text into chunks of at most chunkSize characters,
// preferring the coarsest separator that occurs in the text and recursing
// into finer ones for pieces that are still too long. Separators stay
// attached to the end of the piece they terminate, so every chunk is an
// exact substring of the input and consecutive chunks leave no gap.
type RecursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*RecursiveSplitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *RecursiveSplitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the number of characters carried over between chunks.
func WithOverlap(overlap int) Option {
	return func(s *RecursiveSplitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(s *RecursiveSplitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *RecursiveSplitter {
	s := &RecursiveSplitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Split splits text with the given parameters.
func Split(text string, chunkSize, overlap int) []string {
	return New(WithChunkSize(chunkSize), WithOverlap(overlap)).Split(text)
}

// ChunkSize returns the effective maximum chunk length.
func (s *RecursiveSplitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the effective overlap.
func (s *RecursiveSplitter) Overlap() int {
	return s.overlap
}

// Split returns the chunk texts in document order. Empty input yields no
// chunks.
func (s *RecursiveSplitter) Split(text string) []string {
	runes := []rune(text)
	spans := s.spans(runes)
	if len(spans) == 0 {
		return nil
	}

	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = string(runes[sp.Start:sp.End])
	}
	return chunks
}

// Spans returns the rune ranges Split would cut.
func (s *RecursiveSplitter) Spans(text string) []Span {
	return s.spans([]rune(text))
}

func (s *RecursiveSplitter) spans(runes []rune) []Span {
	if len(runes) == 0 {
		return nil
	}
	return s.splitRange(runes, Span{Start: 0, End: len(runes)}, s.separators)
}

func (s *RecursiveSplitter) splitRange(runes []rune, r Span, separators []string) []Span {
	sep, finer := pickSeparator(string(runes[r.Start:r.End]), separators)

	var out, fitting []Span
	for _, piece := range cut(runes, r, sep) {
		if piece.Len() <= s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting)...)
			fitting = nil
		}
		out = append(out, s.splitRange(runes, piece, finer)...)
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting)...)
	}

	return out
}

// merge packs adjacent pieces into chunks of at most chunkSize, starting
// each new chunk with a tail of the previous one no longer than overlap.
func (s *RecursiveSplitter) merge(pieces []Span) []Span {
	var out, window []Span
	total := 0

	for _, p := range pieces {
		n := p.Len()
		if len(window) > 0 && total+n > s.chunkSize {
			out = append(out, Span{Start: window[0].Start, End: window[len(window)-1].End})
			for len(window) > 0 && (total > s.overlap || total+n > s.chunkSize) {
				total -= window[0].Len()
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}

	if len(window) > 0 {
		out = append(out, Span{Start: window[0].Start, End: window[len(window)-1].End})
	}
	return out
}

// pickSeparator returns the first separator present in text and the finer
// separators below it. Falls back to per-character splitting.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// cut splits r at every occurrence of sep, keeping the separator at the end
// of the preceding piece. An empty separator cuts between every rune.
func cut(runes []rune, r Span, sep string) []Span {
	if sep == "" {
		pieces := make([]Span, 0, r.Len())
		for i := r.Start; i < r.End; i++ {
			pieces = append(pieces, Span{Start: i, End: i + 1})
		}
		return pieces
	}

	sepRunes := []rune(sep)
	var pieces []Span
	start := r.Start
	for i := r.Start; i+len(sepRunes) <= r.End; {
		if hasPrefix(runes[i:r.End], sepRunes) {
			end := i + len(sepRunes)
			pieces = append(pieces, Span{Start: start, End: end})
			start = end
			i = end
			continue
		}
		i++
	}
	if start < r.End {
		pieces = append(pieces, Span{Start: start, End: r.End})
	}
	return pieces
}

func hasPrefix(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i := range prefix {
		if runes[i] != prefix[i] {
			return false
		}
	}
	return true
}
