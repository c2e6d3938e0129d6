package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"docchat-be/internal/config"
	"docchat-be/internal/model"
	"docchat-be/pkg/database"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/tokens"
	"docchat-be/pkg/utils"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// seed loads a plain-text file as a document for local runs: it chunks the
// text, embeds every chunk and stores a summary built from the opening.
func main() {
	file := flag.String("file", "", "path to a UTF-8 text file")
	title := flag.String("title", "", "document title (defaults to the file name)")
	chunkSize := flag.Int("chunk-size", 1200, "chunk size in characters")
	overlap := flag.Int("overlap", 150, "overlap between chunks in characters")
	flag.Parse()

	if *file == "" {
		log.Fatal("Error: -file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Error: Failed to read %s: %v", *file, err)
	}
	if *title == "" {
		*title = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	defer database.Close(db)

	embedder, err := embedding.NewEmbeddingProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingAPIKey)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	var counter tokens.Counter = tokens.EstimateCounter{}
	if tk, err := tokens.NewTiktokenCounter(); err == nil {
		counter = tk
	}

	ctx := context.Background()
	text := string(raw)
	spans := utils.SplitText(text, *chunkSize, *overlap)
	log.Printf("Embedding %d chunks of %q...", len(spans), *title)

	doc := model.Document{Id: uuid.New(), Title: *title}
	chunks := make([]model.DocumentChunk, 0, len(spans))
	for i, span := range spans {
		vec, err := embed(ctx, embedder, span.Text, embedding.TaskRetrievalDocument)
		if err != nil {
			log.Fatalf("Error: Failed to embed chunk %d: %v", i, err)
		}
		chunks = append(chunks, model.DocumentChunk{
			DocumentId: doc.Id,
			Content:    span.Text,
			ChunkIndex: i,
			StartChar:  span.Start,
			EndChar:    span.End,
			TokenCount: counter.Count(span.Text),
			Embedding:  pgvector.NewVector(vec),
		})
	}

	summaryText := summarize(text, 600)
	summaryVec, err := embed(ctx, embedder, summaryText, embedding.TaskRetrievalDocument)
	if err != nil {
		log.Fatalf("Error: Failed to embed summary: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.CreateInBatches(&chunks, 100).Error; err != nil {
				return err
			}
		}
		return tx.Create(&model.DocumentSummary{
			DocumentId: doc.Id,
			Summary:    summaryText,
			Embedding:  pgvector.NewVector(summaryVec),
		}).Error
	})
	if err != nil {
		log.Fatalf("Error: Failed to store document: %v", err)
	}

	log.Printf("Success: Seeded document %s (%d chunks)", doc.Id, len(chunks))
}

func embed(ctx context.Context, p embedding.EmbeddingProvider, text, task string) ([]float32, error) {
	res, err := p.Generate(ctx, text, task)
	if err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

// summarize keeps the first paragraphs up to limit characters.
func summarize(text string, limit int) string {
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+len(para) > limit {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(para)
	}
	out := []rune(b.String())
	if len(out) > limit {
		out = out[:limit]
	}
	return string(out)
}
