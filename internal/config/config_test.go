package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Streaming.GetRadius())
	assert.Equal(t, 30*time.Millisecond, cfg.Streaming.LoadPollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.Streaming.UnloadInterval())
	assert.Equal(t, "dir", cfg.Storage.Backend)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.yaml")
	yamlData := `
streaming:
  radius: 3
  unload_interval_ms: 250
storage:
  backend: badger
  path: /tmp/tiles
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Streaming.GetRadius())
	assert.Equal(t, 250*time.Millisecond, cfg.Streaming.UnloadInterval())
	assert.Equal(t, 30*time.Millisecond, cfg.Streaming.LoadPollInterval(), "незаданные поля сохраняют значения по умолчанию")
	assert.Equal(t, "badger", cfg.Storage.Backend)
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("TERRAIN_METRICS_PORT", "9100")
	m := MetricsConfig{}
	assert.Equal(t, 9100, m.GetMetricsPort())

	m.Port = 9200
	assert.Equal(t, 9200, m.GetMetricsPort(), "значение из конфига важнее env")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRadiusFromEnv(t *testing.T) {
	t.Setenv("TERRAIN_RADIUS", "4")
	cfg := Default()
	assert.Equal(t, 4, cfg.Streaming.GetRadius(), "без значения в конфиге используется env")
	assert.Equal(t, 64, cfg.Storage.GetCacheMaxCostMB())
}
