package domain

// ValidateChunks checks a write batch before anything touches storage. dim is
// the collection's bound dimension, or 0 when none has been established yet,
// in which case the first chunk's length is taken. It returns the dimension
// the batch agrees on.
func ValidateChunks(collection string, dim int, chunks []Chunk) (int, error) {
	for i, c := range chunks {
		if c.ID == "" {
			return 0, Invalidf("chunk %d: empty id", i)
		}
		if c.Text == "" {
			return 0, Invalidf("chunk %q: empty text", c.ID)
		}
		if len(c.Embedding) == 0 {
			return 0, Invalidf("chunk %q: empty embedding", c.ID)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return 0, &DimensionMismatchError{Collection: collection, Expected: dim, Got: len(c.Embedding)}
		}
	}
	return dim, nil
}
