package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

// Chronological orders by creation time with the id as tie-breaker.
type Chronological struct {
	Desc bool
}

func (s Chronological) Apply(db *gorm.DB) *gorm.DB {
	if s.Desc {
		return db.Order("created_at DESC").Order("id DESC")
	}
	return db.Order("created_at ASC").Order("id ASC")
}

// ActiveSince keeps sessions with activity after the cutoff.
type ActiveSince struct {
	Cutoff time.Time
}

func (s ActiveSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_activity_at > ?", s.Cutoff)
}
