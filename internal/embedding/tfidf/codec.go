package tfidf

import (
	"encoding/json"
	"fmt"
	"io"
)

type state struct {
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`
}

// Encode writes the vocabulary and IDF weights as JSON.
func (e *Embedder) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(state{Vocabulary: e.terms, IDF: e.idf})
}

// Decode reads an embedder written by Encode. A missing weight list defaults
// every term to 1.0.
func Decode(r io.Reader) (*Embedder, error) {
	var st state
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}
	if st.IDF == nil {
		st.IDF = make([]float64, len(st.Vocabulary))
		for i := range st.IDF {
			st.IDF[i] = 1.0
		}
	}
	if len(st.IDF) != len(st.Vocabulary) {
		return nil, fmt.Errorf("decode vectorizer: %d terms but %d idf weights", len(st.Vocabulary), len(st.IDF))
	}
	seen := make(map[string]struct{}, len(st.Vocabulary))
	for _, term := range st.Vocabulary {
		if _, dup := seen[term]; dup {
			return nil, fmt.Errorf("decode vectorizer: duplicate term %q", term)
		}
		seen[term] = struct{}{}
	}
	return FromVocabulary(st.Vocabulary, st.IDF), nil
}
