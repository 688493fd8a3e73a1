package vectorstore

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"docsearch/internal/domain"
	"docsearch/internal/embedding/tfidf"
	"docsearch/internal/vector"
)

func buildStore(t *testing.T, root string, chunks []domain.Chunk) *Store {
	t.Helper()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	emb := tfidf.Fit(texts)
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		v, err := emb.EmbedSparse(c.Text)
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		records[i] = domain.Record{DocumentID: c.DocumentID, ChunkIndex: c.Index, Text: c.Text, Embedding: v}
	}
	s := New(Config{Root: root})
	if err := s.Replace(emb, records); err != nil {
		t.Fatalf("replace: %v", err)
	}
	return s
}

var catDog = []domain.Chunk{
	{DocumentID: "pets/cat.md", Index: 0, Text: "the cat sat"},
	{DocumentID: "pets/dog.md", Index: 0, Text: "the dog ran"},
}

func TestQuery_CatScenario(t *testing.T) {
	s := buildStore(t, t.TempDir(), catDog)
	res, err := s.Query("cat", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Record.DocumentID != "pets/cat.md" {
		t.Fatalf("expected cat chunk first, got %s", res[0].Record.DocumentID)
	}
	if !(res[0].Score > res[1].Score) {
		t.Fatalf("expected strictly higher score, got %v vs %v", res[0].Score, res[1].Score)
	}
}

func TestQuery_NotReady(t *testing.T) {
	s := New(Config{Root: t.TempDir()})
	if s.IsReady() {
		t.Fatalf("empty store reported ready")
	}
	if _, err := s.Query("anything", 5); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	// a fitted vectorizer with zero records is still not ready
	if err := s.Replace(tfidf.Fit([]string{"lonely words"}), nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := s.Query("lonely", 5); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady with no records, got %v", err)
	}
}

func TestQuery_Bounds(t *testing.T) {
	s := buildStore(t, t.TempDir(), []domain.Chunk{
		{DocumentID: "a", Index: 0, Text: "alpha beta"},
		{DocumentID: "a", Index: 1, Text: "beta gamma"},
		{DocumentID: "b", Index: 0, Text: "gamma delta"},
	})
	for _, k := range []int{-1, 0, 1, 2, 3, 10} {
		res, err := s.Query("beta gamma", k)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		want := max(0, min(k, 3))
		if len(res) != want {
			t.Fatalf("k=%d: got %d results, want %d", k, len(res), want)
		}
		for i := 1; i < len(res); i++ {
			if res[i].Score > res[i-1].Score {
				t.Fatalf("k=%d: results not sorted", k)
			}
		}
	}
}

func TestReplace_RejectsOutOfVocabularyIndices(t *testing.T) {
	s := New(Config{Root: t.TempDir()})
	emb := tfidf.Fit([]string{"aa bb"})
	bad := []domain.Record{{DocumentID: "x", Embedding: sparse([]int{7}, []float64{1})}}
	if err := s.Replace(emb, bad); err == nil {
		t.Fatalf("expected error for index outside vocabulary")
	}
	if err := s.Replace(tfidf.NewEmbedder(), nil); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unfit embedder, got %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")
	s := buildStore(t, root, []domain.Chunk{
		{DocumentID: "a.md", Index: 0, Text: "alpha beta \"quoted\" <html>"},
		{DocumentID: "a.md", Index: 1, Text: "beta gamma"},
		{DocumentID: "b.pdf", Index: 0, Text: "x"},
	})
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := New(Config{Root: root})
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.IsReady() {
		t.Fatalf("loaded store not ready")
	}
	if !reflect.DeepEqual(loaded.Embedder().Vocabulary(), s.Embedder().Vocabulary()) {
		t.Fatalf("vocabulary mismatch")
	}
	if !reflect.DeepEqual(loaded.Embedder().IDF(), s.Embedder().IDF()) {
		t.Fatalf("idf mismatch")
	}
	if !reflect.DeepEqual(sortedRecords(loaded.Records()), sortedRecords(s.Records())) {
		t.Fatalf("records mismatch:\n%+v\n%+v", loaded.Records(), s.Records())
	}
	meta, err := ReadMeta(root)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.TotalFiles != 2 || meta.TotalChunks != 3 || meta.Generation == "" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDelete_NotRestoredAfterReload(t *testing.T) {
	root := t.TempDir()
	s := buildStore(t, root, []domain.Chunk{
		{DocumentID: "a", Index: 0, Text: "alpha beta"},
		{DocumentID: "a", Index: 1, Text: "beta gamma"},
		{DocumentID: "b", Index: 0, Text: "gamma delta"},
	})
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	vocab := s.Embedder().Vocabulary()
	if n := s.DeleteChunk("a", 1); n != 1 {
		t.Fatalf("DeleteChunk removed %d", n)
	}
	if n := s.DeleteChunk("a", 1); n != 0 {
		t.Fatalf("repeated DeleteChunk removed %d", n)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := New(Config{Root: root})
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Embedder().Vocabulary(), vocab) {
		t.Fatalf("delete changed the vocabulary")
	}
	res, err := loaded.Query("beta gamma", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, r := range res {
		if r.Record.DocumentID == "a" && r.Record.ChunkIndex == 1 {
			t.Fatalf("deleted chunk returned by query")
		}
	}

	if n := loaded.DeleteDocument("a"); n != 1 {
		t.Fatalf("DeleteDocument removed %d", n)
	}
	for _, d := range loaded.Documents() {
		if d.DocumentID == "a" {
			t.Fatalf("deleted document still listed")
		}
	}
}

func TestDelete_WithoutSaveIsNotPersisted(t *testing.T) {
	root := t.TempDir()
	s := buildStore(t, root, catDog)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.DeleteDocument("pets/cat.md")

	loaded := New(Config{Root: root})
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Records()) != 2 {
		t.Fatalf("unsaved delete was persisted")
	}
}

func TestLoad_MissingArtifacts(t *testing.T) {
	root := t.TempDir()
	s := New(Config{Root: root})
	err := s.Load()
	if !errors.Is(err, domain.ErrVectorizerMissing) {
		t.Fatalf("expected ErrVectorizerMissing, got %v", err)
	}
	if s.IsReady() {
		t.Fatalf("store ready without vectorizer")
	}
	st := s.Status()
	if st.Ready || st.Vectorizer || st.Index || st.Meta || st.RecordCount != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}

	// vectorizer without index: loads, zero records, not ready
	built := buildStore(t, root, catDog)
	if err := built.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(root, IndexFile)); err != nil {
		t.Fatalf("remove index: %v", err)
	}
	s = New(Config{Root: root})
	if err := s.Load(); err != nil {
		t.Fatalf("load without index: %v", err)
	}
	if s.IsReady() || len(s.Records()) != 0 {
		t.Fatalf("expected empty, not-ready store")
	}
}

func TestLoad_CorruptIndex(t *testing.T) {
	root := t.TempDir()
	built := buildStore(t, root, catDog)
	if err := built.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	tests := []struct {
		name string
		line string
	}{
		{"bad json", "{not json\n"},
		{"index outside vocabulary", `{"document_id":"z","chunk_index":0,"text":"z","embedding":{"indices":[99],"values":[1],"norm":1}}` + "\n"},
		{"duplicate record", `{"document_id":"pets/cat.md","chunk_index":0,"text":"","embedding":{"indices":[],"values":[],"norm":1e-12}}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(root, IndexFile))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			dir := t.TempDir()
			b, _ := os.ReadFile(filepath.Join(root, VectorizerFile))
			_ = os.WriteFile(filepath.Join(dir, VectorizerFile), b, 0o644)
			_ = os.WriteFile(filepath.Join(dir, IndexFile), append(data, tt.line...), 0o644)
			s := New(Config{Root: dir})
			if err := s.Load(); !errors.Is(err, domain.ErrPersistence) {
				t.Fatalf("expected ErrPersistence, got %v", err)
			}
			if s.IsReady() {
				t.Fatalf("store became ready after failed load")
			}
		})
	}
}

func TestLoad_RejectsInterruptedSave(t *testing.T) {
	root := t.TempDir()
	if err := buildStore(t, root, catDog).Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A later save over a larger vocabulary that stopped after the vectorizer rename.
	next := t.TempDir()
	bigger := append([]domain.Chunk{{DocumentID: "pets/bird.md", Index: 0, Text: "an owl flew over every fence"}}, catDog...)
	if err := buildStore(t, next, bigger).Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(next, VectorizerFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, VectorizerFile), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := New(Config{Root: root})
	if err := s.Load(); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if s.IsReady() {
		t.Fatalf("store ready after mismatched load")
	}

	m, err := ReadMeta(next)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if len(m.Checksums[VectorizerFile]) != 64 || len(m.Checksums[IndexFile]) != 64 {
		t.Fatalf("unexpected checksums: %v", m.Checksums)
	}
}

func TestPurge(t *testing.T) {
	root := t.TempDir()
	s := buildStore(t, root, catDog)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "keep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Purge(root, false); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, IndexFile)); err != nil {
		t.Fatalf("unconfirmed purge removed files: %v", err)
	}
	n, err := Purge(root, true)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 files removed, got %d", n)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "keep")); err != nil {
		t.Fatalf("subdirectory removed: %v", err)
	}
	if n, err := Purge(filepath.Join(root, "missing"), true); err != nil || n != 0 {
		t.Fatalf("purge of missing root = %d, %v", n, err)
	}
}

func TestExport(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out", "copy.jsonl")
	if err := Export(root, dest); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence for missing index, got %v", err)
	}
	s := buildStore(t, root, catDog)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Export(root, dest); err != nil {
		t.Fatalf("export: %v", err)
	}
	want, _ := os.ReadFile(filepath.Join(root, IndexFile))
	got, _ := os.ReadFile(dest)
	if string(got) != string(want) {
		t.Fatalf("exported index differs")
	}
}

func TestDocumentsAndChunks(t *testing.T) {
	s := buildStore(t, t.TempDir(), []domain.Chunk{
		{DocumentID: "b", Index: 1, Text: "two words"},
		{DocumentID: "b", Index: 0, Text: "one word"},
		{DocumentID: "a", Index: 0, Text: "solo"},
		{DocumentID: "c", Index: 0, Text: "solo too"},
	})
	docs := s.Documents()
	want := []domain.DocumentInfo{{DocumentID: "b", Chunks: 2}, {DocumentID: "a", Chunks: 1}, {DocumentID: "c", Chunks: 1}}
	if !reflect.DeepEqual(docs, want) {
		t.Fatalf("Documents() = %+v, want %+v", docs, want)
	}
	chunks := s.Chunks("b")
	if len(chunks) != 2 || chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Fatalf("Chunks(b) not ordered: %+v", chunks)
	}
	if _, ok := s.Chunk("b", 1); !ok {
		t.Fatalf("Chunk(b, 1) not found")
	}
	if _, ok := s.Chunk("b", 7); ok {
		t.Fatalf("Chunk(b, 7) unexpectedly found")
	}
}

func sortedRecords(records []domain.Record) []domain.Record {
	out := append([]domain.Record(nil), records...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

func sparse(indices []int, values []float64) vector.Sparse {
	return vector.Sparse{Indices: indices, Values: values, Norm: vector.Norm(values)}
}
