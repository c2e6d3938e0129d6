package dto

import "time"

type CacheClearResponse struct {
	Removed int `json:"removed"`
}

type BreakerStatusResponse struct {
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	Rejected             uint64    `json:"rejected"`
	LastTransition       time.Time `json:"last_transition"`
}

type LogQueryRequest struct {
	Level  string `query:"level" validate:"omitempty,oneof=debug info warn error"`
	Module string `query:"module"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}

// LogListResponse ids are xxhash digests of the log line, not UUIDs.
type LogListResponse struct {
	Id        string                 `json:"id"`
	Level     string                 `json:"level"`
	Module    string                 `json:"module"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}
