package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, dir string) *Config {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, "fedrates.db", cfg.Store.Path)
	assert.Equal(t, "data_raw", cfg.Data.Dir)
	assert.Equal(t, "data_out", cfg.Data.OutDir)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 3, cfg.Anthropic.CallIntervalSecs)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.Equal(t, "pixtral-large-latest", cfg.OCR.MistralModel)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.AllowOCR)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  path: /var/lib/fedrates.db
data:
  dir: /srv/surveys
pipeline:
  workers: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg := loadFrom(t, dir)
	assert.Equal(t, "/var/lib/fedrates.db", cfg.Store.Path)
	assert.Equal(t, "/srv/surveys", cfg.Data.Dir)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, "data_out", cfg.Data.OutDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FEDRATES_ANTHROPIC_KEY", "sk-test")
	t.Setenv("FEDRATES_LOG_LEVEL", "warn")

	cfg := loadFrom(t, t.TempDir())
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateLocal(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())
	require.NoError(t, cfg.Validate(ModeLocal))

	cfg.Store.Path = ""
	require.Error(t, cfg.Validate(ModeLocal))
}

func TestValidateVision(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())

	err := cfg.Validate(ModeVision)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")

	cfg.Anthropic.Key = "sk-test"
	require.NoError(t, cfg.Validate(ModeVision))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())
	require.Error(t, cfg.Validate("nonsense"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
