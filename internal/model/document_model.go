package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Documents are written by the ingestion pipeline. This service only reads
// them and the migration keeps the tables in shape for local runs.
type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentChunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId uuid.UUID       `gorm:"type:uuid;not null;index"`
	Content    string          `gorm:"type:text;not null"`
	ChunkIndex int             `gorm:"not null;default:0"`
	StartChar  int             `gorm:"not null;default:0"`
	EndChar    int             `gorm:"not null;default:0"`
	TokenCount int             `gorm:"not null;default:0"`
	Embedding  pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

type DocumentSummary struct {
	DocumentId uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Summary    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(768)"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (DocumentSummary) TableName() string {
	return "document_summaries"
}
