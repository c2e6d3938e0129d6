package events

import (
	"fmt"
	"time"
)

const (
	TypeChatCompleted   = "chat.completed"
	TypeDocumentUpdated = "document.updated"
)

// ChatCompleted is published once per finalized request.
type ChatCompleted struct {
	SessionID        string
	MessageID        string
	Outcome          string
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	CostUSD          float64
	Cached           bool
	Interrupted      bool
	LatencyMs        int64
	OccurredAt       time.Time
}

func (e ChatCompleted) EventType() string { return TypeChatCompleted }

func (e ChatCompleted) Timestamp() time.Time { return e.OccurredAt }

func (e ChatCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":        e.SessionID,
		"message_id":        e.MessageID,
		"outcome":           e.Outcome,
		"prompt_tokens":     e.PromptTokens,
		"completion_tokens": e.CompletionTokens,
		"cached_tokens":     e.CachedTokens,
		"cost_usd":          e.CostUSD,
		"cached":            e.Cached,
		"interrupted":       e.Interrupted,
		"latency_ms":        e.LatencyMs,
		"occurred_at":       e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// DocumentUpdated is emitted by the ingestion pipeline when a document's
// chunks are rebuilt or the document is removed.
type DocumentUpdated struct {
	DocumentID string
	OccurredAt time.Time
}

func (e DocumentUpdated) EventType() string { return TypeDocumentUpdated }

func (e DocumentUpdated) Timestamp() time.Time { return e.OccurredAt }

func (e DocumentUpdated) Payload() map[string]interface{} {
	return map[string]interface{}{"document_id": e.DocumentID}
}

// DocumentUpdatedFrom extracts the document id from a decoded event.
func DocumentUpdatedFrom(e Event) (DocumentUpdated, error) {
	id, _ := e.Payload()["document_id"].(string)
	if id == "" {
		return DocumentUpdated{}, fmt.Errorf("event %s: missing document_id", e.EventType())
	}
	return DocumentUpdated{DocumentID: id, OccurredAt: e.Timestamp()}, nil
}
