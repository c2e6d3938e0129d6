package service

import (
	"context"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"
	"docchat-be/pkg/rag/cache"
)

// DocumentEventService keeps the response cache consistent with document
// changes announced by the ingestion pipeline.
type DocumentEventService struct {
	cache  *cache.Cache
	logger logger.ILogger
}

func NewDocumentEventService(c *cache.Cache, log logger.ILogger) *DocumentEventService {
	return &DocumentEventService{cache: c, logger: log}
}

// HandleDocumentUpdated matches nats.EventHandler.
func (s *DocumentEventService) HandleDocumentUpdated(ctx context.Context, event events.Event) error {
	updated, err := events.DocumentUpdatedFrom(event)
	if err != nil {
		s.logger.Warn("EVENTS", "Ignoring malformed document event", map[string]interface{}{"error": err.Error()})
		return nil
	}
	removed := s.cache.InvalidateByDocument(updated.DocumentID)
	s.logger.Info("CACHE", "Invalidated answers for updated document", map[string]interface{}{
		"document_id": updated.DocumentID,
		"removed":     removed,
	})
	return nil
}
