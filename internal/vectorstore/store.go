// Package vectorstore keeps the fitted TF-IDF vectorizer together with the
// indexed records, persists both under a root directory and answers ranked
// queries.
package vectorstore

import (
	"fmt"
	"sort"

	"docsearch/internal/domain"
	"docsearch/internal/embedding/tfidf"
	"docsearch/internal/vectorstore/memory"
)

const (
	VectorizerFile = "vectorizer.json"
	IndexFile      = "index.jsonl"
	MetaFile       = "meta.json"
)

// Config locates a store on disk.
type Config struct {
	Root string
}

// Store owns the vectorizer and the records built with it.
// It does no locking of its own beyond what the Storage provides; callers
// serialize mutations against readers.
type Store struct {
	root     string
	embedder *tfidf.Embedder
	storage  Storage
}

// New creates an empty store backed by in-memory storage.
func New(cfg Config) *Store {
	return NewWithStorage(cfg, memory.NewStorage())
}

// NewWithStorage creates an empty store backed by st.
func NewWithStorage(cfg Config, st Storage) *Store {
	return &Store{root: cfg.Root, storage: st}
}

// Root returns the directory holding the persisted artifacts.
func (s *Store) Root() string { return s.root }

// Embedder returns the loaded vectorizer, or nil.
func (s *Store) Embedder() *tfidf.Embedder { return s.embedder }

// IsReady reports whether a vectorizer is loaded and at least one record exists.
func (s *Store) IsReady() bool {
	return s.embedder.Prepared() && s.storage.Len() > 0
}

// Replace installs a freshly fit vectorizer and its records, discarding the
// previous ones. Every record index must be valid for the vectorizer.
func (s *Store) Replace(emb *tfidf.Embedder, records []domain.Record) error {
	if !emb.Prepared() {
		return domain.ErrInvalidState
	}
	if err := checkIndices(records, emb.Dimension()); err != nil {
		return err
	}
	if err := s.storage.Replace(records); err != nil {
		return err
	}
	s.embedder = emb
	return nil
}

// Query returns at most k records ranked by cosine similarity to text.
func (s *Store) Query(text string, k int) ([]domain.SearchResult, error) {
	if !s.IsReady() {
		return nil, domain.ErrNotReady
	}
	q, err := s.embedder.EmbedSparse(text)
	if err != nil {
		return nil, err
	}
	return s.storage.Search(q, k), nil
}

// DeleteChunk removes one record. The vocabulary is left untouched.
func (s *Store) DeleteChunk(documentID string, chunkIndex int) int {
	return s.storage.DeleteChunk(documentID, chunkIndex)
}

// DeleteDocument removes every record of a document.
func (s *Store) DeleteDocument(documentID string) int {
	return s.storage.DeleteDocument(documentID)
}

// Records returns a copy of all records.
func (s *Store) Records() []domain.Record { return s.storage.Records() }

// Documents lists document ids with their chunk counts, most chunks first
// and then by id.
func (s *Store) Documents() []domain.DocumentInfo {
	counts := make(map[string]int)
	for _, r := range s.storage.Records() {
		counts[r.DocumentID]++
	}
	docs := make([]domain.DocumentInfo, 0, len(counts))
	for id, n := range counts {
		docs = append(docs, domain.DocumentInfo{DocumentID: id, Chunks: n})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Chunks != docs[j].Chunks {
			return docs[i].Chunks > docs[j].Chunks
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
	return docs
}

// Chunks returns the records of a document ordered by chunk index.
func (s *Store) Chunks(documentID string) []domain.Record {
	var out []domain.Record
	for _, r := range s.storage.Records() {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// Chunk looks up a single record.
func (s *Store) Chunk(documentID string, chunkIndex int) (domain.Record, bool) {
	for _, r := range s.storage.Records() {
		if r.DocumentID == documentID && r.ChunkIndex == chunkIndex {
			return r, true
		}
	}
	return domain.Record{}, false
}

// Status reports readiness, counts and which artifacts exist on disk.
func (s *Store) Status() domain.Status {
	records := s.storage.Records()
	docs := make(map[string]struct{})
	for _, r := range records {
		docs[r.DocumentID] = struct{}{}
	}
	return domain.Status{
		Root:          s.root,
		Ready:         s.IsReady(),
		RecordCount:   len(records),
		DocumentCount: len(docs),
		Vectorizer:    fileExists(s.path(VectorizerFile)),
		Index:         fileExists(s.path(IndexFile)),
		Meta:          fileExists(s.path(MetaFile)),
	}
}

func checkIndices(records []domain.Record, dim int) error {
	for _, r := range records {
		emb := r.Embedding
		if len(emb.Indices) != len(emb.Values) {
			return fmt.Errorf("record %s#%d: %d indices but %d values", r.DocumentID, r.ChunkIndex, len(emb.Indices), len(emb.Values))
		}
		for i, idx := range emb.Indices {
			if idx < 0 || idx >= dim {
				return fmt.Errorf("record %s#%d: index %d outside vocabulary of %d terms", r.DocumentID, r.ChunkIndex, idx, dim)
			}
			if i > 0 && idx <= emb.Indices[i-1] {
				return fmt.Errorf("record %s#%d: indices not ascending", r.DocumentID, r.ChunkIndex)
			}
		}
	}
	return nil
}
