// Package command maps REPL and one-shot command names to handlers with
// declared argument shapes.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"docsearch/internal/domain"
)

// Service is the part of the search service that commands drive.
type Service interface {
	IngestPaths(paths []string) (domain.IngestSummary, error)
	Query(query string, topK int) ([]domain.SearchResult, error)
	DeleteChunk(documentID string, chunkIndex int) (int, error)
	DeleteDocument(documentID string) (int, error)
	Status() domain.Status
	Documents(limit int) ([]domain.DocumentInfo, error)
	Chunks(documentID string, limit int) ([]domain.Record, int, error)
	Chunk(documentID string, chunkIndex int) (domain.Record, bool, error)
	Purge(confirmed bool) (int, error)
	Export(dest string) error
}

// ErrQuit is returned by the exit command.
var ErrQuit = errors.New("quit")

// ConfirmationError is returned by destructive commands run without confirmation.
type ConfirmationError struct {
	Prompt string
}

func (e *ConfirmationError) Error() string { return e.Prompt }

// UsageError reports a malformed command line.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "Usage: " + e.Usage }

// Env is passed to every handler.
type Env struct {
	Service   Service
	Confirmed bool
	DefaultK  int
}

// Handler runs a command and returns the text to show.
type Handler func(env *Env, args []string) (string, error)

// Command describes one entry of the dispatch table.
type Command struct {
	Name    string
	Usage   string
	Summary string
	MinArgs int
	Run     Handler
}

// Registry is a closed set of commands keyed by name.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
}

// Lookup returns the command registered under name or one of its aliases.
func (r *Registry) Lookup(name string) (Command, bool) {
	name = strings.ToLower(name)
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	c, ok := r.commands[name]
	return c, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute splits line shell-style and runs the named command.
func (r *Registry) Execute(env *Env, line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}
	if len(args) == 0 {
		return "", nil
	}
	return r.Run(env, args[0], args[1:])
}

// Run dispatches an already split command line.
func (r *Registry) Run(env *Env, name string, args []string) (string, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown command: %s. Type 'help'", name)
	}
	if len(args) < c.MinArgs {
		return "", &UsageError{Usage: c.Usage}
	}
	return c.Run(env, args)
}

// popInt removes "flag N" from args and returns N, or def when the flag is absent.
func popInt(args []string, flag string, def int) ([]string, int, error) {
	for i, a := range args {
		if a != flag {
			continue
		}
		if i+1 >= len(args) {
			return nil, 0, fmt.Errorf("%s expects an integer", flag)
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil {
			return nil, 0, fmt.Errorf("%s expects an integer", flag)
		}
		rest := append(append([]string(nil), args[:i]...), args[i+2:]...)
		return rest, n, nil
	}
	return args, def, nil
}
