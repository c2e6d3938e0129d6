package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string][]float32

func (m mapStore) Get(key string) ([]float32, bool) { v, ok := m[key]; return v, ok }
func (m mapStore) Save(key string, v []float32)     { m[key] = v }

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Generate(ctx context.Context, text, taskType string) (*EmbeddingResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: []float32{float32(len(text))}}}, nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, mapStore{})
	ctx := context.Background()

	first, err := p.Generate(ctx, "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	second, err := p.Generate(ctx, " hello ", TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, first.Embedding.Values, second.Embedding.Values)
	assert.Equal(t, 1, inner.calls)

	_, err = p.Generate(ctx, "hello", TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "task type is part of the key")
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	store := mapStore{}
	p := NewCachedProvider(inner, store)

	_, err := p.Generate(context.Background(), "x", TaskRetrievalQuery)
	require.Error(t, err)
	assert.Empty(t, store)
}

func TestNormalizeVector(t *testing.T) {
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, normalizeVector([]float32{3, 4}), 1e-6)
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
}
