package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ProviderError is a non-2xx response from a completion backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// ClientError reports 4xx responses other than timeouts and throttling.
func (e *ProviderError) ClientError() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *ProviderError) Retryable() bool {
	return !e.ClientError()
}

// Misconfigured reports credential errors.
func (e *ProviderError) Misconfigured() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewProviderError builds a ProviderError from a response whose body has
// already been read.
func NewProviderError(provider string, resp *http.Response, body []byte) *ProviderError {
	pe := &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), 512),
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			pe.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return pe
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
