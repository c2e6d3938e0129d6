package contract

import (
	"context"

	"docchat-be/pkg/store"
)

// DocumentRepository is the read side of the vector index.
type DocumentRepository interface {
	SearchChunks(ctx context.Context, documentID string, vector []float32, topK int) ([]store.Chunk, error)
	RankDocuments(ctx context.Context, vector []float32, limit int) ([]store.Summary, error)
	GetSummaries(ctx context.Context, documentIDs []string) ([]store.Summary, error)
	Exists(ctx context.Context, documentID string) (bool, error)
}
