package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuning(t *testing.T) {
	tn := DefaultTuning()
	assert.Equal(t, 100000, tn.BlockSizeFloor)
	assert.Equal(t, 50000, tn.SuspiciousBodyFloor)
	assert.Equal(t, 200, tn.ResultCap)
	assert.False(t, tn.HTTPFirst)
	assert.Equal(t, 900, tn.CacheTTLSeconds)
}

func TestTuningFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("block_size_floor: 5000\nhttp_first: true\n"), 0o644))

	tn := DefaultTuning()
	require.NoError(t, tn.loadFile(path))
	assert.Equal(t, 5000, tn.BlockSizeFloor)
	assert.True(t, tn.HTTPFirst)
	// Untouched keys keep defaults.
	assert.Equal(t, 50000, tn.SuspiciousBodyFloor)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("OCR_SERVICE_URL", "http://ocr:5000")
	t.Setenv("OCR_MOCK", "false")
	t.Setenv("ARCHIVE_PAGES", "true")
	t.Setenv("TASK_MAX_RETRIES", "7")

	cfg := Load()
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "http://ocr:5000", cfg.OCRServiceURL)
	assert.False(t, cfg.OCRMock)
	assert.True(t, cfg.ArchivePages)
	assert.Equal(t, 7, cfg.TaskMaxRetries)
}
