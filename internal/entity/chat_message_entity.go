package entity

import (
	"time"

	"docchat-be/pkg/store"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	Metadata      MessageMetadata
	CreatedAt     time.Time
}

// MessageMetadata is stored as JSON next to every message. Only assistant
// messages carry accounting fields.
type MessageMetadata struct {
	Sources          []store.Source      `json:"sources,omitempty"`
	Focus            *store.FocusContext `json:"focus_context,omitempty"`
	PromptTokens     int                 `json:"prompt_tokens,omitempty"`
	CompletionTokens int                 `json:"completion_tokens,omitempty"`
	CachedTokens     int                 `json:"cached_tokens,omitempty"`
	TotalTokens      int                 `json:"total_tokens,omitempty"`
	CostUSD          float64             `json:"cost_usd,omitempty"`
	Cached           bool                `json:"cached"`
	Interrupted      bool                `json:"interrupted"`
	Outcome          string              `json:"outcome,omitempty"`
	LatencyMs        int64               `json:"latency_ms,omitempty"`
}
