package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []Span
	}{
		{"empty", "", 10, 2, nil},
		{"fits in one chunk", "short text", 20, 5, []Span{{Text: "short text", Start: 0, End: 10}}},
		{
			name:      "breaks on whitespace",
			text:      "alpha beta gamma delta",
			chunkSize: 12,
			overlap:   0,
			want: []Span{
				{Text: "alpha beta ", Start: 0, End: 11},
				{Text: "gamma delta", Start: 11, End: 22},
			},
		},
		{
			name:      "hard cut with overlap",
			text:      "abcdefghij",
			chunkSize: 4,
			overlap:   1,
			want: []Span{
				{Text: "abcd", Start: 0, End: 4},
				{Text: "defg", Start: 3, End: 7},
				{Text: "ghij", Start: 6, End: 10},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitText(tt.text, tt.chunkSize, tt.overlap))
		})
	}
}

func TestSplitTextOffsetsMatchSource(t *testing.T) {
	text := strings.Repeat("ünïcode wörds ", 40)
	runes := []rune(text)

	spans := SplitText(text, 50, 10)
	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(runes), spans[len(spans)-1].End)
	for _, s := range spans {
		assert.Equal(t, string(runes[s.Start:s.End]), s.Text)
		assert.LessOrEqual(t, s.End-s.Start, 50)
	}
}
