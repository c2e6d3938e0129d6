package implementation

import (
	"context"

	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"
	"docchat-be/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

type scoredChunkRow struct {
	model.DocumentChunk
	Title      string
	Similarity float64
}

// SearchChunks ranks one document's chunks by cosine similarity.
// pgvector's <=> is cosine distance, so similarity is 1 - distance.
func (r *DocumentRepositoryImpl) SearchChunks(ctx context.Context, documentID string, vector []float32, topK int) ([]store.Chunk, error) {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	queryVector := pgvector.NewVector(vector)
	var rows []scoredChunkRow
	err = r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, documents.title AS title, 1 - (document_chunks.embedding <=> ?) AS similarity", queryVector).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("document_chunks.document_id = ?", docID).
		Order(gorm.Expr("document_chunks.embedding <=> ?", queryVector)).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	chunks := make([]store.Chunk, len(rows))
	for i, row := range rows {
		chunks[i] = store.Chunk{
			ID:            row.Id.String(),
			DocumentID:    row.DocumentId.String(),
			DocumentTitle: row.Title,
			Content:       row.Content,
			ChunkIndex:    row.ChunkIndex,
			StartChar:     row.StartChar,
			EndChar:       row.EndChar,
			TokenCount:    row.TokenCount,
			Similarity:    row.Similarity,
		}
	}
	return chunks, nil
}

type scoredSummaryRow struct {
	DocumentId uuid.UUID
	Title      string
	Summary    string
	Similarity float64
}

func (r *DocumentRepositoryImpl) summaryQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("document_summaries").
		Joins("JOIN documents ON documents.id = document_summaries.document_id")
}

func (r *DocumentRepositoryImpl) RankDocuments(ctx context.Context, vector []float32, limit int) ([]store.Summary, error) {
	if limit <= 0 {
		limit = 3
	}
	queryVector := pgvector.NewVector(vector)
	var rows []scoredSummaryRow
	err := r.summaryQuery(ctx).
		Select("document_summaries.document_id, documents.title, document_summaries.summary, 1 - (document_summaries.embedding <=> ?) AS similarity", queryVector).
		Order(gorm.Expr("document_summaries.embedding <=> ?", queryVector)).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSummaries(rows), nil
}

func (r *DocumentRepositoryImpl) GetSummaries(ctx context.Context, documentIDs []string) ([]store.Summary, error) {
	ids := parseIDs(documentIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []scoredSummaryRow
	err := r.summaryQuery(ctx).
		Select("document_summaries.document_id, documents.title, document_summaries.summary").
		Where("document_summaries.document_id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSummaries(rows), nil
}

func (r *DocumentRepositoryImpl) Exists(ctx context.Context, documentID string) (bool, error) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func toSummaries(rows []scoredSummaryRow) []store.Summary {
	out := make([]store.Summary, len(rows))
	for i, row := range rows {
		out[i] = store.Summary{
			DocumentID: row.DocumentId.String(),
			Title:      row.Title,
			Text:       row.Summary,
			Similarity: row.Similarity,
		}
	}
	return out
}

func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
