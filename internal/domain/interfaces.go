package domain

import "docsearch/internal/vector"

// Document is a single source file after text extraction.
type Document struct {
	ID   string
	Text string
}

// Chunk is a window of a document's tokens used as the unit of indexing.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
}

// Record is one indexed chunk together with its TF-IDF embedding.
type Record struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Embedding  vector.Sparse
}

// SearchResult represents a matching record with a relevance score.
type SearchResult struct {
	Score  float64
	Record Record
}

// Status summarizes the readiness of a store.
type Status struct {
	Root          string
	Ready         bool
	RecordCount   int
	DocumentCount int
	Vectorizer    bool
	Index         bool
	Meta          bool
}

// IngestSummary reports the outcome of an ingest run.
type IngestSummary struct {
	FilesIngested int
	FilesSkipped  int
	ChunksCreated int
}

// DocumentInfo is a document id with the number of chunks indexed for it.
type DocumentInfo struct {
	DocumentID string
	Chunks     int
}

// Extractor finds source files and turns them into plain text.
type Extractor interface {
	Discover(inputs []string) ([]string, error)
	Extract(path string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
