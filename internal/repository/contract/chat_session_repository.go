package contract

import (
	"context"
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/repository/specification"
	"docchat-be/pkg/store"

	"github.com/google/uuid"
)

var ErrSessionNotFound = store.ErrSessionNotFound

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	// Delete removes the session and, through the foreign key, its messages.
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// AddUsage increments the running totals and bumps last_activity_at.
	AddUsage(ctx context.Context, id uuid.UUID, costUSD float64, tokens int, at time.Time) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
