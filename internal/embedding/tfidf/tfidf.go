package tfidf

import (
	"math"
	"sort"

	"docsearch/internal/domain"
	"docsearch/internal/tokenizer"
	"docsearch/internal/vector"
)

// Embedder implements a TF-IDF vectorizer producing sparse vectors.
// The vocabulary is sorted so that term indices, and therefore every
// encoded vector's indices, are ascending.
type Embedder struct {
	terms      []string
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{vocabulary: make(map[string]int)}
}

// Fit returns an embedder prepared on corpus.
func Fit(corpus []string) *Embedder {
	e := NewEmbedder()
	_ = e.Prepare(corpus)
	return e
}

// FromVocabulary rebuilds a prepared embedder from persisted terms and weights.
func FromVocabulary(terms []string, idf []float64) *Embedder {
	e := &Embedder{
		terms:      append([]string(nil), terms...),
		vocabulary: make(map[string]int, len(terms)),
		idf:        append([]float64(nil), idf...),
		prepared:   true,
	}
	for i, term := range e.terms {
		e.vocabulary[term] = i
	}
	return e
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
// Each corpus entry counts as one document for document frequency.
func (e *Embedder) Prepare(corpus []string) error {
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenizer.Tokenize(text, tokenizer.VectorPolicy) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	e.terms = terms
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	N := float64(max(1, len(corpus)))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	e.prepared = true
	return nil
}

// Prepared reports whether the vocabulary has been fit or loaded.
func (e *Embedder) Prepared() bool { return e != nil && e.prepared }

// Dimension returns the vocabulary size.
func (e *Embedder) Dimension() int { return len(e.terms) }

// Vocabulary returns a copy of the ordered terms.
func (e *Embedder) Vocabulary() []string { return append([]string(nil), e.terms...) }

// IDF returns a copy of the weights aligned with Vocabulary.
func (e *Embedder) IDF() []float64 { return append([]float64(nil), e.idf...) }

// Index returns the vocabulary position of term.
func (e *Embedder) Index(term string) (int, bool) {
	i, ok := e.vocabulary[term]
	return i, ok
}

// EmbedSparse computes the TF-IDF vector of text. Terms outside the
// vocabulary are dropped.
func (e *Embedder) EmbedSparse(text string) (vector.Sparse, error) {
	if !e.Prepared() {
		return vector.Sparse{}, domain.ErrInvalidState
	}
	tokens := tokenizer.Tokenize(text, tokenizer.VectorPolicy)
	counts := make(map[int]int)
	for _, tok := range tokens {
		if idx, ok := e.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return vector.Sparse{Indices: []int{}, Values: []float64{}, Norm: vector.Epsilon}, nil
	}
	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	total := float64(len(tokens))
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = float64(counts[idx]) / total * e.idf[idx]
	}
	return vector.Sparse{Indices: indices, Values: values, Norm: vector.Norm(values)}, nil
}
