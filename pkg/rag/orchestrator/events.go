package orchestrator

import "docchat-be/pkg/store"

// Event types on the response stream.
const (
	EventToken  = "token"
	EventSource = "source"
	EventError  = "error"
	EventDone   = "done"
)

// Error codes carried by error events.
const (
	CodeInvalidInput       = "invalid_input"
	CodeSessionNotFound    = "session_not_found"
	CodeSpendLimitExceeded = "spend_limit_exceeded"
	CodeRateLimited        = "rate_limited"
	CodeConcurrencyLimited = "concurrency_limited"
	CodeServiceUnavailable = "service_unavailable"
	CodeTimeout            = "timeout"
	CodeProviderError      = "provider_error"
	CodeInternal           = "internal_error"
)

var publicMessages = map[string]string{
	CodeSessionNotFound:    "Chat session not found.",
	CodeSpendLimitExceeded: "This session has reached its usage limit. Start a new session to continue.",
	CodeRateLimited:        "Too many questions in a short time. Please try again later.",
	CodeConcurrencyLimited: "Service busy, try again shortly.",
	CodeServiceUnavailable: "The assistant is temporarily unavailable. Please try again in a minute.",
	CodeTimeout:            "The answer took too long and was cut short. Please try again.",
	CodeProviderError:      "The assistant could not complete the answer. Please try again.",
	CodeInternal:           "Something went wrong. Please try again.",
}

func publicMessage(code string) string {
	if msg, ok := publicMessages[code]; ok {
		return msg
	}
	return publicMessages[CodeInternal]
}

// Event is one element of the response stream. Data is one of the payload
// types below.
type Event struct {
	Type string
	Data interface{}
}

type TokenPayload struct {
	Content string `json:"content"`
}

type ErrorPayload struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	PartialContent    string `json:"partial_content,omitempty"`
}

type DonePayload struct {
	MessageID        string         `json:"message_id"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	CachedTokens     int            `json:"cached_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	CostUSD          float64        `json:"cost_usd"`
	Cached           bool           `json:"cached"`
	Interrupted      bool           `json:"interrupted"`
	LatencyMs        int64          `json:"latency_ms"`
	Sources          []store.Source `json:"sources"`
}

func tokenEvent(content string) Event {
	return Event{Type: EventToken, Data: TokenPayload{Content: content}}
}

func sourceEvent(src store.Source) Event {
	return Event{Type: EventSource, Data: src}
}

func errorEvent(code, message string, retryAfterSeconds int, partial string) Event {
	if message == "" {
		message = publicMessage(code)
	}
	return Event{Type: EventError, Data: ErrorPayload{
		Code:              code,
		Message:           message,
		RetryAfterSeconds: retryAfterSeconds,
		PartialContent:    partial,
	}}
}
