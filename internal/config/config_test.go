package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://api.mangadex.org", cfg.MangaDex.BaseURL)
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, 100, cfg.Sync.TitleLimit)
	assert.Equal(t, 50, cfg.Sync.ChapterLimit)
	assert.Equal(t, time.Second, cfg.Sync.CallDelay)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MANGASYNC_LISTEN_ADDR", ":9090")
	t.Setenv("MANGASYNC_SYNC__TITLE_LIMIT", "25")
	t.Setenv("MANGASYNC_SYNC__INTERVAL", "6h")
	t.Setenv("MANGASYNC_SYNC__ENABLED", "false")
	t.Setenv("MANGASYNC_MANGADEX__BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 25, cfg.Sync.TitleLimit)
	assert.Equal(t, 6*time.Hour, cfg.Sync.Interval)
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, "http://localhost:9999", cfg.MangaDex.BaseURL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("MANGASYNC_SYNC__MAX_RETRIES", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}
