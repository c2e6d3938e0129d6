package service

import (
	"context"
	"errors"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/entity"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/pkg/rag/governor"
	"docchat-be/pkg/ratelimit"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

const defaultHistoryLimit = 50

type ISessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	List(ctx context.Context, page, limit int) ([]*dto.SessionResponse, int64, error)
	Get(ctx context.Context, id uuid.UUID, limit int) (*dto.SessionDetailResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*dto.SessionStatsResponse, error)
	// ReapIdle removes persisted sessions idle past the cutoff.
	ReapIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
	governor   *governor.Governor
	limiter    *ratelimit.Limiter
	logger     logger.ILogger
}

func NewSessionService(
	uowFactory unitofwork.RepositoryFactory,
	gov *governor.Governor,
	limiter *ratelimit.Limiter,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		uowFactory: uowFactory,
		governor:   gov,
		limiter:    limiter,
		logger:     log,
	}
}

func (s *sessionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session := entity.ChatSession{
		Id:             uuid.New(),
		Title:          req.Title,
		LastActivityAt: time.Now(),
	}
	if session.Title == "" {
		session.Title = "New conversation"
	}

	if req.DocumentId != nil && *req.DocumentId != "" {
		exists, err := uow.DocumentRepository().Exists(ctx, *req.DocumentId)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrDocumentNotFound
		}
		docID := uuid.MustParse(*req.DocumentId)
		session.DocumentId = &docID
	}

	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}

	s.logger.Info("SESSION", "Session created", map[string]interface{}{
		"session_id":  session.Id.String(),
		"document_id": req.DocumentId,
	})
	return toSessionResponse(&session), nil
}

func (s *sessionService) List(ctx context.Context, page, limit int) ([]*dto.SessionResponse, int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.ChatSessionRepository().Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionResponse(session))
	}
	return out, total, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID, limit int) (*dto.SessionDetailResponse, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, contract.ErrSessionNotFound
	}

	messages, err := uow.ChatMessageRepository().FindRecent(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionDetailResponse{
		Session:  *toSessionResponse(session),
		Messages: make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, toMessageResponse(m))
	}
	return res, nil
}

// Delete removes the session and its messages in one transaction and drops
// its in-memory accounting.
func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, id); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.governor.Forget(id.String())
	s.limiter.Forget(id.String())

	s.logger.Info("SESSION", "Session deleted", map[string]interface{}{"session_id": id.String()})
	return nil
}

func (s *sessionService) Stats(ctx context.Context, id uuid.UUID) (*dto.SessionStatsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, contract.ErrSessionNotFound
	}

	stats, err := uow.ChatMessageRepository().Stats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &dto.SessionStatsResponse{
		MessageCount:     stats.MessageCount,
		TotalTokens:      stats.TotalTokens,
		EstimatedCostUSD: stats.TotalCostUSD,
		CacheHitRate:     stats.CacheHitRate(),
		AvgLatencyMs:     stats.AvgLatencyMs,
		SpendCeilingUSD:  s.governor.Ceiling(),
	}, nil
}

func (s *sessionService) ReapIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.ChatSessionRepository().DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("SESSION", "Reaped idle sessions", map[string]interface{}{
			"count":  n,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
	return n, nil
}

func toSessionResponse(s *entity.ChatSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:             s.Id,
		DocumentId:     s.DocumentId,
		Title:          s.Title,
		TotalCostUSD:   s.TotalCostUSD,
		TotalTokens:    s.TotalTokens,
		LastActivityAt: s.LastActivityAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toMessageResponse(m *entity.ChatMessage) dto.MessageResponse {
	return dto.MessageResponse{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Metadata: dto.MessageMetadata{
			Sources:          m.Metadata.Sources,
			FocusContext:     m.Metadata.Focus,
			PromptTokens:     m.Metadata.PromptTokens,
			CompletionTokens: m.Metadata.CompletionTokens,
			CachedTokens:     m.Metadata.CachedTokens,
			TotalTokens:      m.Metadata.TotalTokens,
			CostUSD:          m.Metadata.CostUSD,
			Cached:           m.Metadata.Cached,
			Interrupted:      m.Metadata.Interrupted,
			LatencyMs:        m.Metadata.LatencyMs,
		},
	}
}
