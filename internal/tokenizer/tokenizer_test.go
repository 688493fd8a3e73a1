package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		minLen int
		want   []string
	}{
		{"lower-cases and splits", "The Cat, sat!", ChunkPolicy, []string{"the", "cat", "sat"}},
		{"chunk policy keeps single runes", "a b c", ChunkPolicy, []string{"a", "b", "c"}},
		{"vector policy drops single runes", "a bb c dd", VectorPolicy, []string{"bb", "dd"}},
		{"digits are alphanumeric", "v2 release 2024", VectorPolicy, []string{"v2", "release", "2024"}},
		{"unicode letters", "Über café", ChunkPolicy, []string{"über", "café"}},
		{"multi-byte single rune dropped", "é ab", VectorPolicy, []string{"ab"}},
		{"underscore separates", "snake_case", ChunkPolicy, []string{"snake", "case"}},
		{"empty", "", ChunkPolicy, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text, tt.minLen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q, %d) = %q, want %q", tt.text, tt.minLen, got, tt.want)
			}
		})
	}
}
