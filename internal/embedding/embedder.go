package embedding

import "docsearch/internal/vector"

// SparseEmbedder converts free text into a sparse vector over a fitted vocabulary.
// Implementations require a preparation phase over the corpus.
type SparseEmbedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	EmbedSparse(text string) (vector.Sparse, error)
}
