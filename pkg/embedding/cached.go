package embedding

import (
	"context"
	"strings"
)

// VectorStore memoizes vectors by key.
type VectorStore interface {
	Get(key string) ([]float32, bool)
	Save(key string, vector []float32)
}

// CachedProvider serves repeated texts from a VectorStore.
type CachedProvider struct {
	inner EmbeddingProvider
	store VectorStore
}

func NewCachedProvider(inner EmbeddingProvider, store VectorStore) *CachedProvider {
	return &CachedProvider{inner: inner, store: store}
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	key := taskType + "\x00" + strings.TrimSpace(text)
	if v, ok := p.store.Get(key); ok {
		return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: v}}, nil
	}

	res, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	p.store.Save(key, res.Embedding.Values)
	return res, nil
}
