package prompt

import (
	"testing"

	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/retrieval"
	"docchat-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextualBuilder_Build(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	retrieved := &retrieval.Result{Chunks: []store.Chunk{
		{DocumentID: "d1", DocumentTitle: "Handbook", Content: "Leave is 20 days."},
		{DocumentID: "d2", Content: "Untitled content."},
	}}
	focus := &store.FocusContext{StartChar: 1, EndChar: 2, SurroundingText: "the leave policy section"}

	msgs := NewContextualBuilder("How much leave?", history, retrieved, focus).Build()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, history, msgs[1:3])

	user := msgs[3]
	assert.Equal(t, llm.RoleUser, user.Role)
	assert.Contains(t, user.Content, "[Document: Handbook]\nLeave is 20 days.")
	assert.Contains(t, user.Content, "[Document: d2]")
	assert.Contains(t, user.Content, "<focused_passage>\nthe leave policy section\n</focused_passage>")
	assert.Contains(t, user.Content, "<userInput>\nHow much leave?\n</userInput>")
}

func TestContextualBuilder_SummaryFallback(t *testing.T) {
	retrieved := &retrieval.Result{Summaries: []store.Summary{{DocumentID: "d1", Title: "Report", Text: "Overview text"}}}
	msgs := NewContextualBuilder("q", nil, retrieved, nil).Build()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "document summaries follow")
	assert.Contains(t, msgs[1].Content, "[Document: Report]\nOverview text")
	assert.NotContains(t, msgs[1].Content, "<focused_passage>")
}

func TestContextualBuilder_NoMaterial(t *testing.T) {
	msgs := NewContextualBuilder("q", nil, &retrieval.Result{}, nil).Build()
	assert.Contains(t, msgs[1].Content, "No reference material is available.")
}
