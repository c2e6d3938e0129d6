package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId     *uuid.UUID `gorm:"type:uuid;index"`
	Title          string     `gorm:"type:text;not null"`
	TotalCostUSD   float64    `gorm:"column:total_cost_usd;type:numeric(12,6);not null;default:0"`
	TotalTokens    int        `gorm:"not null;default:0"`
	LastActivityAt time.Time  `gorm:"not null;index"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`

	Messages []ChatMessage `gorm:"foreignKey:ChatSessionId;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
