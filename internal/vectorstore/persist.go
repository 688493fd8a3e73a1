package vectorstore

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"docsearch/internal/domain"
	"docsearch/internal/embedding/tfidf"
	"docsearch/internal/vector"
)

// recordLine is one line of index.jsonl.
type recordLine struct {
	DocumentID string        `json:"document_id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Embedding  vector.Sparse `json:"embedding"`
}

// Meta is the summary written next to the index. It is renamed into place
// last, and Checksums holds the sha256 of the vectorizer and index files of
// the same save.
type Meta struct {
	TotalFiles  int               `json:"total_files"`
	TotalChunks int               `json:"total_chunks"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Generation  string            `json:"generation"`
	Checksums   map[string]string `json:"checksums,omitempty"`
}

func (s *Store) path(name string) string { return filepath.Join(s.root, name) }

// Load reads the vectorizer and the records from the root directory. A missing
// index yields zero records. A missing vectorizer returns ErrVectorizerMissing
// after the records have still been loaded, so status can be reported.
// Artifacts that do not match the checksums in meta.json, as left by an
// interrupted save, are rejected with ErrPersistence.
// On any other error the store is left unchanged.
func (s *Store) Load() error {
	if err := s.verifyChecksums(); err != nil {
		return err
	}
	emb, embErr := readVectorizer(s.path(VectorizerFile))
	if embErr != nil && !errors.Is(embErr, domain.ErrVectorizerMissing) {
		return embErr
	}
	records, err := readRecords(s.path(IndexFile))
	if err != nil {
		return err
	}
	if emb != nil {
		if err := checkIndices(records, emb.Dimension()); err != nil {
			return persistErr("validate", s.path(IndexFile), err)
		}
	}
	if err := s.storage.Replace(records); err != nil {
		return persistErr("validate", s.path(IndexFile), err)
	}
	s.embedder = emb
	return embErr
}

// Save rewrites every artifact to match memory. Files are staged in the root
// and renamed into place once all of them were written.
func (s *Store) Save() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return persistErr("create", s.root, err)
	}
	records := s.storage.Records()
	type staged struct{ tmp, dst string }
	var files []staged
	defer func() {
		for _, f := range files {
			_ = os.Remove(f.tmp)
		}
	}()
	sums := make(map[string]string)
	stage := func(name string, write func(w io.Writer) error) error {
		tmp, sum, err := writeTemp(s.root, name, write)
		if err != nil {
			return persistErr("write", s.path(name), err)
		}
		files = append(files, staged{tmp: tmp, dst: s.path(name)})
		sums[name] = sum
		return nil
	}
	if s.embedder.Prepared() {
		if err := stage(VectorizerFile, s.embedder.Encode); err != nil {
			return err
		}
	}
	if err := stage(IndexFile, func(w io.Writer) error { return writeRecords(w, records) }); err != nil {
		return err
	}
	meta := newMeta(records)
	meta.Checksums = sums
	if err := stage(MetaFile, func(w io.Writer) error { return json.NewEncoder(w).Encode(meta) }); err != nil {
		return err
	}
	// meta.json is staged last, so it lands only after both artifacts it describes.
	for len(files) > 0 {
		f := files[0]
		if err := os.Rename(f.tmp, f.dst); err != nil {
			return persistErr("rename", f.dst, err)
		}
		files = files[1:]
	}
	return nil
}

// ReadMeta reads meta.json from root.
func ReadMeta(root string) (Meta, error) {
	var m Meta
	path := filepath.Join(root, MetaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return m, persistErr("read", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, persistErr("decode", path, err)
	}
	return m, nil
}

// Export copies the persisted index of root to dest.
func Export(root, dest string) error {
	src := filepath.Join(root, IndexFile)
	in, err := os.Open(src)
	if err != nil {
		return persistErr("open", src, err)
	}
	defer in.Close()
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return persistErr("create", dir, err)
		}
	}
	out, err := os.Create(dest)
	if err != nil {
		return persistErr("create", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return persistErr("copy", dest, err)
	}
	if err := out.Close(); err != nil {
		return persistErr("close", dest, err)
	}
	return nil
}

func (s *Store) verifyChecksums() error {
	path := s.path(MetaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return persistErr("read", path, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return persistErr("decode", path, err)
	}
	for _, name := range []string{VectorizerFile, IndexFile} {
		want, ok := m.Checksums[name]
		if !ok {
			continue
		}
		got, err := fileChecksum(s.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return persistErr("read", s.path(name), err)
		}
		if got != want {
			return persistErr("verify", s.path(name), fmt.Errorf("checksum does not match %s, last save was interrupted", MetaFile))
		}
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newMeta(records []domain.Record) Meta {
	docs := make(map[string]struct{})
	for _, r := range records {
		docs[r.DocumentID] = struct{}{}
	}
	return Meta{
		TotalFiles:  len(docs),
		TotalChunks: len(records),
		UpdatedAt:   time.Now().UTC(),
		Generation:  uuid.NewString(),
	}
}

func readVectorizer(path string) (*tfidf.Embedder, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrVectorizerMissing, path)
		}
		return nil, persistErr("open", path, err)
	}
	defer f.Close()
	emb, err := tfidf.Decode(f)
	if err != nil {
		return nil, persistErr("read", path, err)
	}
	return emb, nil
}

func readRecords(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, persistErr("open", path, err)
	}
	defer f.Close()
	var records []domain.Record
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var line recordLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, persistErr("decode", path, fmt.Errorf("record %d: %w", len(records)+1, err))
		}
		emb := line.Embedding
		if emb.Indices == nil {
			emb.Indices = []int{}
		}
		if emb.Values == nil {
			emb.Values = []float64{}
		}
		records = append(records, domain.Record{
			DocumentID: line.DocumentID,
			ChunkIndex: line.ChunkIndex,
			Text:       line.Text,
			Embedding:  emb,
		})
	}
	return records, nil
}

func writeRecords(w io.Writer, records []domain.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		emb := r.Embedding
		if emb.Indices == nil {
			emb.Indices = []int{}
		}
		if emb.Values == nil {
			emb.Values = []float64{}
		}
		line := recordLine{DocumentID: r.DocumentID, ChunkIndex: r.ChunkIndex, Text: r.Text, Embedding: emb}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

// writeTemp writes a sibling temp file for name in dir and returns its path
// and the sha256 of its contents.
func writeTemp(dir, name string, write func(w io.Writer) error) (string, string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", "", err
	}
	fail := func(err error) (string, string, error) {
		f.Close()
		os.Remove(f.Name())
		return "", "", err
	}
	h := sha256.New()
	bw := bufio.NewWriter(f)
	if err := write(io.MultiWriter(bw, h)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", "", err
	}
	return f.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func persistErr(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrPersistence, op, path, err)
}
