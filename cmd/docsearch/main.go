package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docsearch/internal/chunker"
	"docsearch/internal/command"
	"docsearch/internal/config"
	"docsearch/internal/domain"
	"docsearch/internal/extract"
	"docsearch/internal/server"
	"docsearch/internal/service"
	"docsearch/internal/tools"
	"docsearch/internal/tui"
	"docsearch/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var yes bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docsearch/config.yaml if not provided)")
	flag.BoolVar(&yes, "yes", false, "Confirm destructive commands without prompting")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: docsearch [--config=config.yaml] [--yes] [repl | serve | tools | <command> [args...]]")
		flag.PrintDefaults()
	}
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Assemble components
	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "words", "":
		ch = chunker.NewWordChunker(cfg.Chunker.MaxWords, cfg.Chunker.Overlap)
	default:
		log.Fatalf("unknown chunker: %s", cfg.Chunker.Type)
	}

	args := flag.Args()
	// stdout carries the tool protocol, so logs go to stderr.
	logger := log.New(os.Stderr, "", log.LstdFlags)
	store := vectorstore.New(vectorstore.Config{Root: cfg.Store.Root})
	svc := service.NewRAGService(extract.New(), ch, store, cfg.Ingest.Inputs, logger)
	if err := svc.Reload(); err != nil {
		logger.Printf("[warn] could not load vector store at %s: %v", cfg.Store.Root, err)
	}

	registry := command.Default()
	env := &command.Env{Service: svc, Confirmed: yes, DefaultK: cfg.Query.TopK}

	mode := "repl"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "repl":
		st := svc.Status()
		summary := fmt.Sprintf("Store: %s  records: %d  documents: %d", st.Root, st.RecordCount, st.DocumentCount)
		if !st.Ready {
			summary = fmt.Sprintf("Store: %s  (not ready, run 'ingest')", st.Root)
		}
		if _, err := tea.NewProgram(tui.New(registry, env, summary), tea.WithAltScreen()).Run(); err != nil {
			log.Fatal(err)
		}
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		handler := server.NewHandler(svc, server.Options{DefaultK: cfg.Query.TopK, MaxK: cfg.Query.MaxK}, logger)
		if err := server.Run(ctx, cfg.Server.Addr, handler, logger); err != nil {
			log.Fatalf("server: %v", err)
		}
	case "tools":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := tools.Serve(ctx, svc, os.Stdin, os.Stdout, logger); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("tools: %v", err)
		}
	default:
		os.Exit(runOnce(registry, env, args))
	}
}

// runOnce executes a single command and returns the process exit code.
func runOnce(registry *command.Registry, env *command.Env, args []string) int {
	out, err := registry.Run(env, args[0], args[1:])
	var ce *command.ConfirmationError
	if errors.As(err, &ce) {
		fmt.Print(ce.Prompt + " ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			fmt.Println("Aborted.")
			return 1
		}
		confirmed := *env
		confirmed.Confirmed = true
		out, err = registry.Run(&confirmed, args[0], args[1:])
	}
	switch {
	case errors.Is(err, command.ErrQuit):
		return 0
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if out != "" {
		fmt.Println(out)
	}
	return 0
}
