package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id             uuid.UUID
	DocumentId     *uuid.UUID
	Title          string
	TotalCostUSD   float64
	TotalTokens    int
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChatSessionStats aggregates a session's messages.
type ChatSessionStats struct {
	MessageCount      int64
	AssistantMessages int64
	CachedResponses   int64
	TotalTokens       int64
	TotalCostUSD      float64
	AvgLatencyMs      float64
}

func (s ChatSessionStats) CacheHitRate() float64 {
	if s.AssistantMessages == 0 {
		return 0
	}
	return float64(s.CachedResponses) / float64(s.AssistantMessages)
}
