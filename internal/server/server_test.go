package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsearch/internal/chunker"
	"docsearch/internal/extract"
	"docsearch/internal/service"
	"docsearch/internal/vectorstore"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	in := t.TempDir()
	files := map[string]string{
		"cats.txt": "Cats purr and sleep in the warm sun.",
		"dogs.txt": "Dogs bark loudly at the mail carrier.",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(in, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store := vectorstore.New(vectorstore.Config{Root: filepath.Join(t.TempDir(), "store")})
	logger := log.New(io.Discard, "", 0)
	svc := service.NewRAGService(extract.New(), chunker.NewWordChunker(300, 50), store, []string{in}, logger)
	return NewHandler(svc, Options{DefaultK: 5, MaxK: 50}, logger)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newTestHandler(t))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, target, err)
	}
	return resp.StatusCode, out
}

func TestQuery_NotReady(t *testing.T) {
	ts := newTestServer(t)
	code, body := do(t, http.MethodPost, ts.URL+"/query", `{"query":"cats"}`)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("expected error body, got %v", body)
	}
}

func TestIngestQueryDelete(t *testing.T) {
	ts := newTestServer(t)
	code, body := do(t, http.MethodPost, ts.URL+"/ingest", "")
	if code != http.StatusOK || body["files_ingested"].(float64) != 2 {
		t.Fatalf("ingest: %d %v", code, body)
	}

	code, body = do(t, http.MethodPost, ts.URL+"/query", `{"query":"mail carrier","k":1}`)
	if code != http.StatusOK {
		t.Fatalf("query: %d %v", code, body)
	}
	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	top := results[0].(map[string]any)
	if !strings.HasSuffix(top["document_id"].(string), "dogs.txt") {
		t.Fatalf("unexpected top result %v", top)
	}

	code, body = do(t, http.MethodGet, ts.URL+"/documents", "")
	if code != http.StatusOK || len(body["documents"].([]any)) != 2 {
		t.Fatalf("documents: %d %v", code, body)
	}

	doc := top["document_id"].(string)
	code, body = do(t, http.MethodDelete, ts.URL+"/chunks?document_id="+url.QueryEscape(doc)+"&chunk_index=0", "")
	if code != http.StatusOK || body["removed"].(float64) != 1 {
		t.Fatalf("delete chunk: %d %v", code, body)
	}

	code, body = do(t, http.MethodGet, ts.URL+"/status", "")
	if code != http.StatusOK || body["documents"].(float64) != 1 {
		t.Fatalf("status: %d %v", code, body)
	}
}

func TestQuery_Validation(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing query", `{"k":3}`},
		{"k too large", `{"query":"cats","k":51}`},
		{"k negative", `{"query":"cats","k":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := do(t, http.MethodPost, ts.URL+"/query", tc.body)
			if code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	code, _ := do(t, http.MethodGet, ts.URL+"/query", "")
	if code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", code)
	}
	code, _ = do(t, http.MethodDelete, ts.URL+"/chunks?document_id=x", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing chunk_index, got %d", code)
	}
}

func TestIngest_BodyOfUnknownLength(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", http.StatusOK},
		{"paths omitted", "{}", http.StatusOK},
		{"invalid json", "{", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tc.body))
			req.ContentLength = -1
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
