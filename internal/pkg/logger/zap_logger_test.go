package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger_GetLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewZapLogger(path, true)

	l.Info("CACHE", "cache cleared", map[string]interface{}{"removed": 3})
	l.Warn("BREAKER", "breaker opened", nil)
	l.Info("CACHE", "cache invalidated", nil)
	l.Debug("CACHE", "not written to file", nil)
	_ = l.Sync()

	all, err := l.GetLogs(LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "cache invalidated", all[0].Message, "newest first")
	assert.NotEmpty(t, all[0].Id)

	cacheOnly, err := l.GetLogs(LogQuery{Module: "CACHE"})
	require.NoError(t, err)
	assert.Len(t, cacheOnly, 2)

	warns, err := l.GetLogs(LogQuery{Level: "WARN"})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "BREAKER", warns[0].Module)

	page, err := l.GetLogs(LogQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "breaker opened", page[0].Message)

	empty, err := l.GetLogs(LogQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("X", "ignored", map[string]interface{}{"error": "boom"})
	logs, err := l.GetLogs(LogQuery{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
