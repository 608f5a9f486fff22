package port

// Chunker splits extracted document text into overlapping bounded segments.
type Chunker interface {
	Split(text string) []string
}
