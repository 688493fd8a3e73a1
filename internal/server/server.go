// Package server exposes the search service over HTTP with JSON bodies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"docsearch/internal/domain"
)

// Service is the part of the search service reachable over HTTP.
type Service interface {
	IngestPaths(paths []string) (domain.IngestSummary, error)
	Query(query string, topK int) ([]domain.SearchResult, error)
	DeleteChunk(documentID string, chunkIndex int) (int, error)
	DeleteDocument(documentID string) (int, error)
	Status() domain.Status
	Documents(limit int) ([]domain.DocumentInfo, error)
}

// Options bounds query requests.
type Options struct {
	DefaultK int
	MaxK     int
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type ingestRequest struct {
	Paths []string `json:"paths"`
}

type resultJSON struct {
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
}

// NewHandler returns the HTTP routes for svc.
func NewHandler(svc Service, opts Options, logger *log.Logger) http.Handler {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.MaxK <= 0 {
		opts.MaxK = 50
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/status", handleStatus(svc))
	mux.HandleFunc("/ingest", handleIngest(svc, logger))
	mux.HandleFunc("/query", handleQuery(svc, opts))
	mux.HandleFunc("/documents", handleDocuments(svc))
	mux.HandleFunc("/chunks", handleChunks(svc))
	return mux
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrEmptyCorpus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		st := svc.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"root":       st.Root,
			"ready":      st.Ready,
			"records":    st.RecordCount,
			"documents":  st.DocumentCount,
			"vectorizer": st.Vectorizer,
			"index":      st.Index,
			"meta":       st.Meta,
		})
	}
}

func handleIngest(svc Service, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		summary, err := svc.IngestPaths(req.Paths)
		if err != nil {
			logger.Printf("[err] ingest: %v", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"files_ingested": summary.FilesIngested,
			"files_skipped":  summary.FilesSkipped,
			"chunks_created": summary.ChunksCreated,
		})
	}
}

func handleQuery(svc Service, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		k := req.K
		if k == 0 {
			k = opts.DefaultK
		}
		if k < 1 || k > opts.MaxK {
			writeError(w, http.StatusBadRequest, "k must be between 1 and "+strconv.Itoa(opts.MaxK))
			return
		}
		results, err := svc.Query(req.Query, k)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]resultJSON, 0, len(results))
		for _, res := range results {
			out = append(out, resultJSON{
				Score:      res.Score,
				DocumentID: res.Record.DocumentID,
				ChunkIndex: res.Record.ChunkIndex,
				Text:       res.Record.Text,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": out})
	}
}

func handleDocuments(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			docs, err := svc.Documents(0)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				out = append(out, map[string]any{"document_id": d.DocumentID, "chunks": d.Chunks})
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": out})
		case http.MethodDelete:
			doc := r.URL.Query().Get("document_id")
			if doc == "" {
				writeError(w, http.StatusBadRequest, "document_id is required")
				return
			}
			n, err := svc.DeleteDocument(doc)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"removed": n})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func handleChunks(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		q := r.URL.Query()
		doc := q.Get("document_id")
		idx, err := strconv.Atoi(q.Get("chunk_index"))
		if doc == "" || err != nil {
			writeError(w, http.StatusBadRequest, "document_id and integer chunk_index are required")
			return
		}
		n, err := svc.DeleteChunk(doc, idx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": n})
	}
}
