package vectorstore

import (
	"docsearch/internal/domain"
	"docsearch/internal/vector"
)

// Storage holds indexed records and ranks them against a query vector.
// The Store persists whatever a Storage holds; an implementation may keep
// a linear list or an inverted index.
type Storage interface {
	Replace(records []domain.Record) error
	Records() []domain.Record
	Len() int
	Search(query vector.Sparse, topK int) []domain.SearchResult
	DeleteChunk(documentID string, chunkIndex int) int
	DeleteDocument(documentID string) int
	Clear()
}
