package command

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"docsearch/internal/domain"
)

const notReadyMsg = "Vector store not ready. Run 'ingest' first."

// Default returns the registry of built-in commands.
func Default() *Registry {
	r := &Registry{
		commands: make(map[string]Command),
		aliases:  map[string]string{"quit": "exit"},
	}
	for _, c := range []Command{
		{Name: "help", Usage: "help", Summary: "Show this help", Run: r.help},
		{Name: "status", Usage: "status", Summary: "Show store readiness and basic stats", Run: runStatus},
		{Name: "docs", Usage: "docs [--limit N]", Summary: "List documents and their chunk counts", Run: runDocs},
		{Name: "chunks", Usage: "chunks <doc> [--limit N]", Summary: "List chunks for a document", MinArgs: 1, Run: runChunks},
		{Name: "search", Usage: "search <query> [--k K]", Summary: "Search top-k similar chunks", MinArgs: 1, Run: runSearch},
		{Name: "show", Usage: "show <doc> <chunk>", Summary: "Print full text of a chunk", MinArgs: 2, Run: runShow},
		{Name: "delete", Usage: "delete <doc> <chunk> | delete <doc> --all", Summary: "Delete a chunk or every chunk of a document", MinArgs: 2, Run: runDelete},
		{Name: "purge", Usage: "purge", Summary: "Remove all vector store files", Run: runPurge},
		{Name: "ingest", Usage: "ingest [path...]", Summary: "Rebuild the vector store from the inputs", Run: runIngest},
		{Name: "export", Usage: "export <dest.jsonl>", Summary: "Copy the index to a target path", MinArgs: 1, Run: runExport},
		{Name: "exit", Usage: "exit | quit", Summary: "Exit the manager", Run: func(*Env, []string) (string, error) { return "", ErrQuit }},
	} {
		r.commands[c.Name] = c
	}
	return r
}

func (r *Registry) help(*Env, []string) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, n := range r.Names() {
		c := r.commands[n]
		fmt.Fprintf(&b, "  %-42s %s\n", c.Usage, c.Summary)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func runStatus(env *Env, _ []string) (string, error) {
	st := env.Service.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", st.Root)
	fmt.Fprintf(&b, " - vectorizer.json: %s\n", okMissing(st.Vectorizer))
	fmt.Fprintf(&b, " - index.jsonl:     %s\n", okMissing(st.Index))
	fmt.Fprintf(&b, " - meta.json:       %s\n", okMissing(st.Meta))
	if !st.Ready {
		b.WriteString("Status: not ready (ingest required)")
		return b.String(), nil
	}
	b.WriteString("Status: ready\n")
	fmt.Fprintf(&b, "Records: %d\n", st.RecordCount)
	fmt.Fprintf(&b, "Documents: %d", st.DocumentCount)
	return b.String(), nil
}

func okMissing(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}

func runDocs(env *Env, args []string) (string, error) {
	_, limit, err := popInt(args, "--limit", 0)
	if err != nil {
		return "", err
	}
	docs, err := env.Service.Documents(0)
	if err != nil {
		return notReady(err)
	}
	st := env.Service.Status()
	shown := docs
	if limit > 0 && limit < len(shown) {
		shown = shown[:limit]
	}
	var b strings.Builder
	for _, d := range shown {
		fmt.Fprintf(&b, "%5d  %s\n", d.Chunks, d.DocumentID)
	}
	fmt.Fprintf(&b, "Total documents: %d; total chunks: %d", len(docs), st.RecordCount)
	return b.String(), nil
}

func runChunks(env *Env, args []string) (string, error) {
	args, limit, err := popInt(args, "--limit", 0)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", &UsageError{Usage: "chunks <doc> [--limit N]"}
	}
	doc := args[0]
	chunks, total, err := env.Service.Chunks(doc, limit)
	if err != nil {
		return notReady(err)
	}
	if total == 0 {
		return fmt.Sprintf("No chunks for document: %s", doc), nil
	}
	var b strings.Builder
	for _, r := range chunks {
		fmt.Fprintf(&b, "chunk=%4d  %s\n", r.ChunkIndex, Snippet(r.Text, 120))
	}
	fmt.Fprintf(&b, "Total chunks for %s: %d", doc, total)
	return b.String(), nil
}

func runSearch(env *Env, args []string) (string, error) {
	def := env.DefaultK
	if def <= 0 {
		def = 5
	}
	args, k, err := popInt(args, "--k", def)
	if err != nil {
		return "", err
	}
	query := strings.Join(args, " ")
	results, err := env.Service.Query(query, k)
	if err != nil {
		return notReady(err)
	}
	if len(results) == 0 {
		return "No results.", nil
	}
	var b strings.Builder
	for rank, res := range results {
		fmt.Fprintf(&b, "#%d  score=%.4f  doc=%s  chunk=%d\n", rank+1, res.Score, res.Record.DocumentID, res.Record.ChunkIndex)
		fmt.Fprintf(&b, "     %s\n", Snippet(res.Record.Text, 200))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func runShow(env *Env, args []string) (string, error) {
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return "", errors.New("chunk index must be an integer")
	}
	r, ok, err := env.Service.Chunk(args[0], idx)
	if err != nil {
		return notReady(err)
	}
	if !ok {
		return "Record not found.", nil
	}
	return fmt.Sprintf("Document: %s\nChunk: %d\n---\n%s", r.DocumentID, r.ChunkIndex, r.Text), nil
}

func runDelete(env *Env, args []string) (string, error) {
	doc := args[0]
	var n int
	var err error
	if args[1] == "--all" {
		n, err = env.Service.DeleteDocument(doc)
	} else {
		idx, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return "", errors.New("chunk index must be an integer")
		}
		n, err = env.Service.DeleteChunk(doc, idx)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			return "Vector store not ready. Nothing to delete.", nil
		}
		return "", err
	}
	if n == 0 {
		return "No matching records removed.", nil
	}
	return fmt.Sprintf("Removed %d record(s). Updated index.jsonl and meta.json.", n), nil
}

func runPurge(env *Env, _ []string) (string, error) {
	st := env.Service.Status()
	if !env.Confirmed {
		return "", &ConfirmationError{Prompt: fmt.Sprintf("About to delete all contents under %s. Type 'yes' to confirm.", st.Root)}
	}
	n, err := env.Service.Purge(true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Purged %d file(s). Run 'ingest' to rebuild.", n), nil
}

func runIngest(env *Env, args []string) (string, error) {
	summary, err := env.Service.IngestPaths(args)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCorpus) {
			return "No text chunks found. Place supported files under the configured inputs.", nil
		}
		return "", err
	}
	msg := fmt.Sprintf("Ingested %d files into %d chunks.", summary.FilesIngested, summary.ChunksCreated)
	if summary.FilesSkipped > 0 {
		msg += fmt.Sprintf(" Skipped %d file(s).", summary.FilesSkipped)
	}
	return msg, nil
}

func runExport(env *Env, args []string) (string, error) {
	if err := env.Service.Export(args[0]); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "No index.jsonl to export. Run 'ingest' first.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Exported index to %s", args[0]), nil
}

func notReady(err error) (string, error) {
	if errors.Is(err, domain.ErrNotReady) {
		return notReadyMsg, nil
	}
	return "", err
}

// Snippet flattens newlines and truncates text to at most n runes.
func Snippet(text string, n int) string {
	s := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
