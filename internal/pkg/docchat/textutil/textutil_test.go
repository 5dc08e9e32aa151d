package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestHashString(t *testing.T) {
	assert.Equal(t, HashString("hello"), HashString("hello"))
	assert.NotEqual(t, HashString("hello"), HashString("hello "))
	assert.Len(t, HashString("anything"), 32)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "he...", TruncateString("hello", 2))
	// 按 rune 截断，不会截断多字节字符。
	assert.Equal(t, "你好...", TruncateString("你好世界", 2))
	assert.Equal(t, "hello", TruncateString("hello", 0))
}

func TestParseQueryList(t *testing.T) {
	output := `1. What is the termination clause?
2) Which party bears liability?
- How long is the notice period?

* "What are the renewal terms?"
`
	got := ParseQueryList(output)
	assert.Equal(t, []string{
		"What is the termination clause?",
		"Which party bears liability?",
		"How long is the notice period?",
		"What are the renewal terms?",
	}, got)
}

func TestParseQueryListEmpty(t *testing.T) {
	assert.Empty(t, ParseQueryList(""))
	assert.Empty(t, ParseQueryList("\n  \n\t\n"))
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
