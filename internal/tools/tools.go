// Package tools serves the ingest and query operations to MCP clients over
// stdio.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"docsearch/internal/domain"
)

const (
	serverName    = "vector-store"
	serverVersion = "0.1.0"
)

// Service is the part of the search service exposed as tools.
type Service interface {
	IngestPaths(paths []string) (domain.IngestSummary, error)
	Query(query string, topK int) ([]domain.SearchResult, error)
}

// Tool describes one callable tool.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	call        func(svc Service, args json.RawMessage) (string, error)
}

type queryArgs struct {
	Query string `json:"query"`
	K     *int   `json:"k"`
}

type queryHit struct {
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
}

// Table is the closed set of tools served to clients.
var Table = []Tool{
	{
		Name:        "ingest",
		Description: "Scan the configured inputs and rebuild the TF-IDF vector store.",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		call:        callIngest,
	},
	{
		Name:        "query",
		Description: "Query the vector store and return top-k chunks.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"k":{"type":"integer","default":5,"minimum":1,"maximum":50}},"required":["query"]}`),
		call:        callQuery,
	},
}

func lookup(name string) (Tool, bool) {
	for _, t := range Table {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Call invokes the named tool with JSON arguments and returns its text output.
func Call(svc Service, name string, args json.RawMessage) (string, error) {
	t, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.call(svc, args)
}

func callIngest(svc Service, _ json.RawMessage) (string, error) {
	summary, err := svc.IngestPaths(nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ingest: ok (%d files, %d chunks)", summary.FilesIngested, summary.ChunksCreated), nil
}

func callQuery(svc Service, raw json.RawMessage) (string, error) {
	var args queryArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	q := strings.TrimSpace(args.Query)
	if q == "" {
		return "", errors.New("query is required")
	}
	k := 5
	if args.K != nil {
		k = min(50, max(1, *args.K))
	}
	results, err := svc.Query(q, k)
	if err != nil {
		return "", err
	}
	hits := make([]queryHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, queryHit{
			Score:      r.Score,
			DocumentID: r.Record.DocumentID,
			ChunkIndex: r.Record.ChunkIndex,
			Text:       r.Record.Text,
		})
	}
	b, err := json.Marshal(hits)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// New returns an MCP server with every entry of Table registered.
// Tool failures are reported as error results, not protocol errors.
func New(svc Service) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	for _, t := range Table {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), handler(svc, t.Name))
	}
	return s
}

func handler(svc Service, name string) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw json.RawMessage
		if args := req.GetArguments(); len(args) > 0 {
			b, err := json.Marshal(args)
			if err != nil {
				return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
			}
			raw = b
		}
		out, err := Call(svc, name, raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// Serve runs the MCP server on r and w until r is exhausted or ctx is cancelled.
func Serve(ctx context.Context, svc Service, r io.Reader, w io.Writer, logger *log.Logger) error {
	stdio := server.NewStdioServer(New(svc))
	if logger != nil {
		stdio.SetErrorLogger(logger)
	}
	if err := stdio.Listen(ctx, r, w); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
