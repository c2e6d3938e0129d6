package service

import (
	"context"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/breaker"
	"docchat-be/pkg/rag/cache"
)

type IAdminService interface {
	ClearCache(ctx context.Context) int
	InvalidateDocument(ctx context.Context, documentID string) int
	CacheStats(ctx context.Context) cache.Stats
	BreakerStatus(ctx context.Context) *dto.BreakerStatusResponse
	GetLogs(ctx context.Context, req *dto.LogQueryRequest) ([]*dto.LogListResponse, error)
}

type adminService struct {
	cache   *cache.Cache
	breaker *breaker.Breaker
	logger  logger.ILogger
}

func NewAdminService(c *cache.Cache, br *breaker.Breaker, log logger.ILogger) IAdminService {
	return &adminService{cache: c, breaker: br, logger: log}
}

func (s *adminService) ClearCache(ctx context.Context) int {
	removed := s.cache.Clear()
	s.logger.Info("CACHE", "Cache cleared by admin", map[string]interface{}{"removed": removed})
	return removed
}

func (s *adminService) InvalidateDocument(ctx context.Context, documentID string) int {
	removed := s.cache.InvalidateByDocument(documentID)
	s.logger.Info("CACHE", "Document invalidated by admin", map[string]interface{}{
		"document_id": documentID,
		"removed":     removed,
	})
	return removed
}

func (s *adminService) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats()
}

func (s *adminService) BreakerStatus(ctx context.Context) *dto.BreakerStatusResponse {
	snap := s.breaker.Snapshot()
	return &dto.BreakerStatusResponse{
		State:                snap.State.String(),
		ConsecutiveFailures:  snap.ConsecutiveFailures,
		ConsecutiveSuccesses: snap.ConsecutiveSuccesses,
		Rejected:             snap.Rejected,
		LastTransition:       snap.LastTransition,
	}
}

func (s *adminService) GetLogs(ctx context.Context, req *dto.LogQueryRequest) ([]*dto.LogListResponse, error) {
	entries, err := s.logger.GetLogs(logger.LogQuery{
		Level:  req.Level,
		Module: req.Module,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*dto.LogListResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &dto.LogListResponse{
			Id:        e.Id,
			Level:     e.Level,
			Module:    e.Module,
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		})
	}
	return out, nil
}
