// Package extract discovers input files and turns them into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"docsearch/internal/domain"
)

type extractFunc func(path string) (string, error)

// Extractor dispatches on file extension.
type Extractor struct {
	byExt map[string]extractFunc
}

// New returns an extractor for HTML, Markdown, plain text and PDF files.
func New() *Extractor {
	return &Extractor{byExt: map[string]extractFunc{
		".html":     fromHTML,
		".htm":      fromHTML,
		".md":       fromPlain,
		".markdown": fromPlain,
		".txt":      fromPlain,
		".pdf":      fromPDF,
	}}
}

// Supports reports whether path has an extension the extractor handles.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract returns the text content of path. Failures and documents without
// any text are reported as ErrExtraction.
func (e *Extractor) Extract(path string) (string, error) {
	fn, ok := e.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s: unsupported file type", domain.ErrExtraction, path)
	}
	text, err := fn(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtraction, path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s: no text", domain.ErrExtraction, path)
	}
	return text, nil
}

// Discover expands inputs into a sorted, de-duplicated list of supported
// files. Directories are walked recursively; files are kept if supported.
// Inputs that do not exist are skipped.
func (e *Extractor) Discover(inputs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			if e.Supports(in) {
				add(in)
			}
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !e.Supports(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func fromPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(bytes.ToValidUTF8(data, []byte("�"))), nil
}

var ignoredTags = map[string]bool{"script": true, "style": true, "noscript": true}

func fromHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HTMLText(f)
}

// HTMLText returns the trimmed text nodes of an HTML document joined by
// newlines, skipping script, style and noscript content.
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var parts []string
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.Join(parts, "\n"), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if ignoredTags[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if ignoredTags[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(z.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func fromPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
