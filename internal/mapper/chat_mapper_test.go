package mapper

import (
	"testing"
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/model"
	"docchat-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageMetadataSurvivesModelConversion(t *testing.T) {
	m := NewChatMapper()
	msg := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: uuid.New(),
		Role:          entity.RoleAssistant,
		Content:       "answer",
		Metadata: entity.MessageMetadata{
			Sources:          []store.Source{{ChunkID: "c1", DocumentID: "d1", Similarity: 0.9}},
			CompletionTokens: 12,
			CostUSD:          0.25,
			Interrupted:      true,
		},
		CreatedAt: time.Now(),
	}

	row, err := m.ChatMessageToModel(msg)
	require.NoError(t, err)

	back := m.ChatMessageToEntity(row)
	assert.Equal(t, msg.Metadata, back.Metadata)
	assert.Equal(t, msg.Content, back.Content)
}

func TestChatMessageToEntityIgnoresBrokenMetadata(t *testing.T) {
	m := NewChatMapper()
	got := m.ChatMessageToEntity(&model.ChatMessage{Role: entity.RoleUser, Content: "hi", Metadata: []byte("{not json")})

	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Content)
	assert.Empty(t, got.Metadata.Sources)
}
