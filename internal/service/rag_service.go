package service

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"docsearch/internal/domain"
	"docsearch/internal/embedding"
	"docsearch/internal/embedding/tfidf"
	"docsearch/internal/vectorstore"
)

// RAGServiceImpl runs ingest, query and maintenance against one store root.
// Mutations are serialized against readers so adapters may call it
// concurrently.
type RAGServiceImpl struct {
	mu        sync.RWMutex
	extractor domain.Extractor
	chunker   domain.Chunker
	store     *vectorstore.Store
	inputs    []string
	logger    *log.Logger
	purge     func(root string, confirmed bool) (int, error)
}

func NewRAGService(extractor domain.Extractor, chunker domain.Chunker, store *vectorstore.Store, inputs []string, logger *log.Logger) *RAGServiceImpl {
	if logger == nil {
		logger = log.Default()
	}
	return &RAGServiceImpl{
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		inputs:    inputs,
		logger:    logger,
		purge:     vectorstore.Purge,
	}
}

// Reload replaces the in-memory store with what is persisted under its root.
// A store that was never ingested is not an error.
func (s *RAGServiceImpl) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := vectorstore.New(vectorstore.Config{Root: s.store.Root()})
	err := fresh.Load()
	if err != nil && !errors.Is(err, domain.ErrVectorizerMissing) {
		return err
	}
	s.store = fresh
	return nil
}

// IngestPaths discovers and extracts documents under paths (the configured
// inputs when paths is empty) and rebuilds the index from them. Documents
// that fail extraction are logged and skipped.
func (s *RAGServiceImpl) IngestPaths(paths []string) (domain.IngestSummary, error) {
	if len(paths) == 0 {
		paths = s.inputs
	}
	files, err := s.extractor.Discover(paths)
	if err != nil {
		return domain.IngestSummary{}, err
	}
	var docs []domain.Document
	skipped := 0
	for _, f := range files {
		text, err := s.extractor.Extract(f)
		if err != nil {
			s.logger.Printf("[warn] skipping %s: %v", f, err)
			skipped++
			continue
		}
		docs = append(docs, domain.Document{ID: filepath.ToSlash(f), Text: text})
	}
	summary, err := s.IngestDocuments(docs)
	summary.FilesSkipped += skipped
	return summary, err
}

// IngestDocuments fits a new vectorizer over every chunk of docs, encodes
// the chunks and replaces the persisted index. The previous index stays in
// place if anything fails.
func (s *RAGServiceImpl) IngestDocuments(docs []domain.Document) (domain.IngestSummary, error) {
	var summary domain.IngestSummary
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			s.logger.Printf("[warn] skipping %s: %v", d.ID, err)
			summary.FilesSkipped++
			continue
		}
		if len(cs) == 0 {
			summary.FilesSkipped++
			continue
		}
		summary.FilesIngested++
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return summary, domain.ErrEmptyCorpus
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	emb := tfidf.NewEmbedder()
	if err := emb.Prepare(texts); err != nil {
		return summary, err
	}
	records, err := embedChunks(emb, chunks)
	if err != nil {
		return summary, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := vectorstore.New(vectorstore.Config{Root: s.store.Root()})
	if err := fresh.Replace(emb, records); err != nil {
		return summary, err
	}
	if err := fresh.Save(); err != nil {
		return summary, err
	}
	s.store = fresh
	summary.ChunksCreated = len(records)
	s.logger.Printf("[ok] ingested %d files into %d chunks at %s", summary.FilesIngested, summary.ChunksCreated, fresh.Root())
	return summary, nil
}

func embedChunks(enc embedding.SparseEmbedder, chunks []domain.Chunk) ([]domain.Record, error) {
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		v, err := enc.EmbedSparse(c.Text)
		if err != nil {
			return nil, fmt.Errorf("%s: encode %s#%d: %w", enc.Name(), c.DocumentID, c.Index, err)
		}
		records[i] = domain.Record{DocumentID: c.DocumentID, ChunkIndex: c.Index, Text: c.Text, Embedding: v}
	}
	return records, nil
}

// Query returns the k records most similar to query.
func (s *RAGServiceImpl) Query(query string, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Query(query, k)
}

// DeleteChunk removes one chunk and persists the change. It returns the
// number of records removed.
func (s *RAGServiceImpl) DeleteChunk(documentID string, chunkIndex int) (int, error) {
	return s.delete(func(st *vectorstore.Store) int { return st.DeleteChunk(documentID, chunkIndex) })
}

// DeleteDocument removes all chunks of a document and persists the change.
func (s *RAGServiceImpl) DeleteDocument(documentID string) (int, error) {
	return s.delete(func(st *vectorstore.Store) int { return st.DeleteDocument(documentID) })
}

func (s *RAGServiceImpl) delete(remove func(*vectorstore.Store) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.IsReady() {
		return 0, domain.ErrNotReady
	}
	snapshot := s.store.Records()
	n := remove(s.store)
	if n == 0 {
		return 0, nil
	}
	if err := s.store.Save(); err != nil {
		// Disk still holds the removed records; keep memory in step with it.
		if rerr := s.store.Replace(s.store.Embedder(), snapshot); rerr != nil {
			return 0, errors.Join(err, rerr)
		}
		return 0, err
	}
	return n, nil
}

// Status reports readiness and counts for the store.
func (s *RAGServiceImpl) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Status()
}

// Documents lists indexed documents, at most limit when limit is positive.
func (s *RAGServiceImpl) Documents(limit int) ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.store.IsReady() {
		return nil, domain.ErrNotReady
	}
	docs := s.store.Documents()
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

// Chunks lists the chunks of one document, at most limit when limit is positive.
// The second result is the document's total chunk count.
func (s *RAGServiceImpl) Chunks(documentID string, limit int) ([]domain.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.store.IsReady() {
		return nil, 0, domain.ErrNotReady
	}
	chunks := s.store.Chunks(documentID)
	total := len(chunks)
	if limit > 0 && limit < len(chunks) {
		chunks = chunks[:limit]
	}
	return chunks, total, nil
}

// Chunk returns a single record.
func (s *RAGServiceImpl) Chunk(documentID string, chunkIndex int) (domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.store.IsReady() {
		return domain.Record{}, false, domain.ErrNotReady
	}
	r, ok := s.store.Chunk(documentID, chunkIndex)
	return r, ok, nil
}

// Purge deletes the persisted artifacts and empties the in-memory store.
// The store is emptied whenever at least one artifact was removed.
func (s *RAGServiceImpl) Purge(confirmed bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.store.Root()
	n, err := s.purge(root, confirmed)
	if err != nil && n == 0 {
		return n, err
	}
	// Some artifacts are gone even when a later removal failed.
	s.store = vectorstore.New(vectorstore.Config{Root: root})
	return n, err
}

// Export copies the persisted index to dest.
func (s *RAGServiceImpl) Export(dest string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.Export(s.store.Root(), dest); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Root returns the store directory.
func (s *RAGServiceImpl) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Root()
}
