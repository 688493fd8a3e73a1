// Package tokenizer splits text into lower-cased alphanumeric tokens.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ChunkPolicy keeps every token; chunk boundaries are computed with it.
	ChunkPolicy = 0
	// VectorPolicy drops single-character tokens before vectorization.
	VectorPolicy = 2
)

// IsWordRune reports whether r is part of a token.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Tokenize returns the maximal runs of letters and digits in text, lower-cased,
// dropping tokens shorter than minLen runes.
func Tokenize(text string, minLen int) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		t := b.String()
		b.Reset()
		if utf8.RuneCountInString(t) >= minLen {
			tokens = append(tokens, t)
		}
	}
	for _, r := range text {
		if IsWordRune(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}
