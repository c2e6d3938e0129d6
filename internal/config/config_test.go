package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityFloor)
	assert.Equal(t, 8000, cfg.Retrieval.TokenBudget)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Rate.QueryCap)
	assert.Equal(t, 5, cfg.Rate.MaxConcurrent)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 5.00, cfg.Session.SpendCeiling)
	assert.Equal(t, 60*time.Second, cfg.Stream.Timeout)
	assert.Equal(t, 0.42, cfg.Pricing.Output)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RAG_FOCUS_BOOST", "0.25")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("STREAM_TIMEOUT", "45")
	t.Setenv("RATE_MAX_CONCURRENT", "12")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("ENVIRONMENT", "production")

	cfg := FromEnv()

	assert.Equal(t, 0.25, cfg.Retrieval.FocusBoost)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 45*time.Second, cfg.Stream.Timeout)
	assert.Equal(t, 12, cfg.Rate.MaxConcurrent)
	assert.True(t, cfg.App.OtelEnabled)
	assert.True(t, cfg.IsProduction())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("RATE_QUERY_CAP", "lots")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("SESSION_SPEND_CEILING", "")

	cfg := FromEnv()

	assert.Equal(t, 100, cfg.Rate.QueryCap)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5.00, cfg.Session.SpendCeiling)
}
