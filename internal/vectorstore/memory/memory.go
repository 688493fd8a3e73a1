package memory

import (
	"fmt"
	"sort"
	"sync"

	"docsearch/internal/domain"
	"docsearch/internal/vector"
)

// Storage is an in-memory record list scored by brute-force sparse cosine similarity.
type Storage struct {
	mu      sync.RWMutex
	records []domain.Record
}

func NewStorage() *Storage { return &Storage{} }

type key struct {
	doc   string
	index int
}

// Replace swaps in records wholesale. Records must be unique by document id
// and chunk index.
func (s *Storage) Replace(records []domain.Record) error {
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		k := key{r.DocumentID, r.ChunkIndex}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate record %s#%d", r.DocumentID, r.ChunkIndex)
		}
		seen[k] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]domain.Record(nil), records...)
	return nil
}

// Records returns a copy of the stored records in insertion order.
func (s *Storage) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Record(nil), s.records...)
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Search scores every record against query and returns the best topK,
// highest score first. Equal scores are ordered by document id, then chunk index.
func (s *Storage) Search(query vector.Sparse, topK int) []domain.SearchResult {
	if topK <= 0 {
		return []domain.SearchResult{}
	}
	s.mu.RLock()
	results := make([]domain.SearchResult, len(s.records))
	for i, r := range s.records {
		results[i] = domain.SearchResult{Score: vector.Cosine(query, r.Embedding), Record: r}
	}
	s.mu.RUnlock()
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Record.DocumentID != b.Record.DocumentID {
			return a.Record.DocumentID < b.Record.DocumentID
		}
		return a.Record.ChunkIndex < b.Record.ChunkIndex
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK]
}

// DeleteChunk removes the record with the given id and index and returns
// the number removed.
func (s *Storage) DeleteChunk(documentID string, chunkIndex int) int {
	return s.deleteWhere(func(r domain.Record) bool {
		return r.DocumentID == documentID && r.ChunkIndex == chunkIndex
	})
}

// DeleteDocument removes every record of documentID and returns the number removed.
func (s *Storage) DeleteDocument(documentID string) int {
	return s.deleteWhere(func(r domain.Record) bool { return r.DocumentID == documentID })
}

func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *Storage) deleteWhere(match func(domain.Record) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed
}
