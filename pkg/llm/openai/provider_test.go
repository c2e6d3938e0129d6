package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"docchat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":2,\"prompt_cache_hit_tokens\":4}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewProvider("secret", srv.URL, "")
	stream, err := p.ChatStream(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)

	content, usage, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", content)
	require.NotNil(t, usage)
	assert.Equal(t, llm.Usage{PromptTokens: 12, CompletionTokens: 2, CachedTokens: 4}, *usage)
}

func TestProvider_ErrorStatus(t *testing.T) {
	tests := []struct {
		status     int
		client     bool
		retryAfter string
	}{
		{status: http.StatusBadRequest, client: true},
		{status: http.StatusUnauthorized, client: true},
		{status: http.StatusTooManyRequests, client: false, retryAfter: "3"},
		{status: http.StatusServiceUnavailable, client: false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := NewProvider("k", srv.URL, "m").ChatStream(context.Background(), nil)
			var pe *llm.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.client, pe.ClientError())
			if tt.retryAfter != "" {
				assert.Equal(t, "3s", pe.RetryAfter.String())
			}
		})
	}
}

func TestProvider_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
	}))
	defer srv.Close()

	stream, err := NewProvider("", srv.URL, "m").ChatStream(context.Background(), nil)
	require.NoError(t, err)
	content, _, err := llm.Collect(stream)
	assert.Equal(t, "partial", content)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
