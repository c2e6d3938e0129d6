package dto

import (
	"time"

	"docchat-be/pkg/store"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	DocumentId *string `json:"document_id" validate:"omitempty,uuid"`
	Title      string  `json:"title" validate:"max=200"`
}

type SessionResponse struct {
	Id             uuid.UUID  `json:"id"`
	DocumentId     *uuid.UUID `json:"document_id,omitempty"`
	Title          string     `json:"title"`
	TotalCostUSD   float64    `json:"total_cost_usd"`
	TotalTokens    int        `json:"total_tokens"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ListSessionsRequest struct {
	Page  int `query:"page" validate:"min=1"`
	Limit int `query:"limit" validate:"min=1,max=100"`
}

type MessageResponse struct {
	Id        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Metadata  MessageMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

type MessageMetadata struct {
	Sources          []store.Source      `json:"sources,omitempty"`
	FocusContext     *store.FocusContext `json:"focus_context,omitempty"`
	PromptTokens     int                 `json:"prompt_tokens,omitempty"`
	CompletionTokens int                 `json:"completion_tokens,omitempty"`
	CachedTokens     int                 `json:"cached_tokens,omitempty"`
	TotalTokens      int                 `json:"total_tokens,omitempty"`
	CostUSD          float64             `json:"cost_usd,omitempty"`
	Cached           bool                `json:"cached"`
	Interrupted      bool                `json:"interrupted"`
	LatencyMs        int64               `json:"latency_ms,omitempty"`
}

type SessionDetailResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
}

type SessionStatsResponse struct {
	MessageCount     int64   `json:"message_count"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	SpendCeilingUSD  float64 `json:"spend_ceiling_usd"`
}

// SendMessageRequest is validated by the orchestrator so that input errors
// reach the client as invalid_input stream events.
type SendMessageRequest struct {
	Query        string           `json:"query"`
	FocusContext *FocusContextDTO `json:"focus_context"`
}

type FocusContextDTO struct {
	DocumentId      string `json:"document_id"`
	StartChar       int    `json:"start_char"`
	EndChar         int    `json:"end_char"`
	SurroundingText string `json:"surrounding_text"`
}

func (f *FocusContextDTO) ToStore() *store.FocusContext {
	if f == nil {
		return nil
	}
	return &store.FocusContext{
		DocumentID:      f.DocumentId,
		StartChar:       f.StartChar,
		EndChar:         f.EndChar,
		SurroundingText: f.SurroundingText,
	}
}
