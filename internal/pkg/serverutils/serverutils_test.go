package serverutils

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSSEEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteSSEEvent(w, "token", map[string]string{"content": "hi"}))
	require.NoError(t, WriteSSEEvent(w, "done", map[string]int{"total_tokens": 3}))

	assert.Equal(t, "event: token\ndata: {\"content\":\"hi\"}\n\nevent: done\ndata: {\"total_tokens\":3}\n\n", buf.String())
}

type sampleRequest struct {
	DocumentID string `json:"document_id" validate:"omitempty,uuid"`
	Query      string `json:"query" validate:"required,max=10"`
}

func TestValidateRequest(t *testing.T) {
	require.NoError(t, ValidateRequest(&sampleRequest{Query: "ok"}))

	err := ValidateRequest(&sampleRequest{DocumentID: "nope"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["query"])
	assert.Equal(t, "must be a valid UUID", verr.Fields["document_id"])
}
