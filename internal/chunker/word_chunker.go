package chunker

import (
	"strings"

	"docsearch/internal/domain"
	"docsearch/internal/tokenizer"
)

// WordChunker splits text into fixed-size word windows with overlap.
type WordChunker struct {
	maxWords int
	overlap  int
}

func NewWordChunker(maxWords, overlap int) *WordChunker {
	if overlap < 0 {
		overlap = 0
	}
	return &WordChunker{maxWords: maxWords, overlap: overlap}
}

// Chunk splits the document and numbers the non-blank windows from zero.
func (c *WordChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, text := range SplitText(document.Text, c.maxWords, c.overlap) {
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			Index:      len(chunks),
			Text:       text,
		})
	}
	return chunks, nil
}

// SplitText slides a window of maxWords tokens over text, advancing by
// maxWords-overlap (at least one token) until the window reaches the end.
// Windows are rendered as lower-cased tokens joined by single spaces.
// A non-positive maxWords returns the text unchanged as one chunk.
func SplitText(text string, maxWords, overlap int) []string {
	if maxWords <= 0 {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	words := tokenizer.Tokenize(text, tokenizer.ChunkPolicy)
	n := len(words)
	if n == 0 {
		return nil
	}
	step := max(1, maxWords-overlap)
	var chunks []string
	for i := 0; i < n; i += step {
		end := min(i+maxWords, n)
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == n {
			break
		}
	}
	return chunks
}
