package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter()
	require.NoError(t, err)

	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count("Retrieval augmented generation"), 0)
	assert.Greater(t, c.Count("one two three four five six"), c.Count("one two"))
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Estimate(tt.text), tt.text)
		assert.Equal(t, tt.want, EstimateCounter{}.Count(tt.text), tt.text)
	}
}
