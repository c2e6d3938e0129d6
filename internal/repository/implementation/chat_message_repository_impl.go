package implementation

import (
	"context"
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/mapper"
	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Create assigns a time-ordered id when the caller did not set one so that
// (created_at, id) gives a total order inside a session.
func (r *ChatMessageRepositoryImpl) Create(ctx context.Context, message *entity.ChatMessage) error {
	if message.Id == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		message.Id = id
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m, err := r.mapper.ChatMessageToModel(message)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.ChatMessageToEntity(m)
	return nil
}

func (r *ChatMessageRepositoryImpl) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", sessionId).Delete(&model.ChatMessage{}).Error
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

func (r *ChatMessageRepositoryImpl) FindRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	recent, err := r.FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.Chronological{Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type chatStatsRow struct {
	MessageCount      int64
	AssistantMessages int64
	CachedResponses   int64
	TotalTokens       int64
	TotalCostUSD      float64
	AvgLatencyMs      float64
}

func (r *ChatMessageRepositoryImpl) Stats(ctx context.Context, sessionId uuid.UUID) (*entity.ChatSessionStats, error) {
	var row chatStatsRow
	err := r.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Select(`COUNT(*) AS message_count,
			COUNT(*) FILTER (WHERE role = 'assistant') AS assistant_messages,
			COUNT(*) FILTER (WHERE role = 'assistant' AND (metadata->>'cached')::boolean) AS cached_responses,
			COALESCE(SUM((metadata->>'total_tokens')::bigint), 0) AS total_tokens,
			COALESCE(SUM((metadata->>'cost_usd')::numeric), 0) AS total_cost_usd,
			COALESCE(AVG((metadata->>'latency_ms')::numeric) FILTER (WHERE role = 'assistant'), 0) AS avg_latency_ms`).
		Where("chat_session_id = ?", sessionId).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &entity.ChatSessionStats{
		MessageCount:      row.MessageCount,
		AssistantMessages: row.AssistantMessages,
		CachedResponses:   row.CachedResponses,
		TotalTokens:       row.TotalTokens,
		TotalCostUSD:      row.TotalCostUSD,
		AvgLatencyMs:      row.AvgLatencyMs,
	}, nil
}
