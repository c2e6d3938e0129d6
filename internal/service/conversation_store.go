package service

import (
	"context"
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/orchestrator"
	"docchat-be/pkg/store"

	"github.com/google/uuid"
)

// conversationStore backs the orchestrator with the chat repositories.
type conversationStore struct {
	uowFactory unitofwork.RepositoryFactory
	now        func() time.Time
}

func NewConversationStore(uowFactory unitofwork.RepositoryFactory) orchestrator.ConversationStore {
	return &conversationStore{uowFactory: uowFactory, now: time.Now}
}

func (c *conversationStore) Session(ctx context.Context, sessionID string) (*orchestrator.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, store.ErrSessionNotFound
	}
	session, err := c.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, store.ErrSessionNotFound
	}

	out := &orchestrator.Session{ID: session.Id.String(), SpentUSD: session.TotalCostUSD}
	if session.DocumentId != nil {
		out.DocumentID = session.DocumentId.String()
	}
	return out, nil
}

func (c *conversationStore) History(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, store.ErrSessionNotFound
	}
	recent, err := c.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().FindRecent(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		if m.Content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == entity.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return history, nil
}

func (c *conversationStore) SaveUserMessage(ctx context.Context, sessionID, content string, focus *store.FocusContext) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return store.ErrSessionNotFound
	}
	uow := c.uowFactory.NewUnitOfWork(ctx)
	msg := entity.ChatMessage{
		ChatSessionId: id,
		Role:          entity.RoleUser,
		Content:       content,
		Metadata:      entity.MessageMetadata{Focus: focus},
		CreatedAt:     c.now(),
	}
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, &msg); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Touch(ctx, id, msg.CreatedAt); err != nil {
		return err
	}
	return uow.Commit()
}

func (c *conversationStore) SaveAssistantMessage(ctx context.Context, m orchestrator.AssistantMessage) (string, error) {
	id, err := uuid.Parse(m.SessionID)
	if err != nil {
		return "", store.ErrSessionNotFound
	}
	msg := entity.ChatMessage{
		ChatSessionId: id,
		Role:          entity.RoleAssistant,
		Content:       m.Content,
		Metadata: entity.MessageMetadata{
			Sources:          m.Sources,
			PromptTokens:     m.Accounting.PromptTokens,
			CompletionTokens: m.Accounting.CompletionTokens,
			CachedTokens:     m.Accounting.CachedTokens,
			TotalTokens:      m.Accounting.TotalTokens,
			CostUSD:          m.Accounting.CostUSD,
			Cached:           m.Cached,
			Interrupted:      m.Outcome.Interrupted(),
			Outcome:          string(m.Outcome),
			LatencyMs:        m.LatencyMs,
		},
		CreatedAt: c.now(),
	}
	if err := c.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().Create(ctx, &msg); err != nil {
		return "", err
	}
	return msg.Id.String(), nil
}

func (c *conversationStore) RecordUsage(ctx context.Context, sessionID string, costUSD float64, tokens int) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return store.ErrSessionNotFound
	}
	return c.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().AddUsage(ctx, id, costUSD, tokens, c.now())
}
