package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `database:
  host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "/data/photos", cfg.Storage.Root)
	assert.Equal(t, 0.75, cfg.Vision.ObjectConfidenceFloor)
	assert.Equal(t, 30*time.Second, cfg.Faces.Timeout)
	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	assert.Equal(t, 10*time.Minute, cfg.Discovery.RescanInterval)
	assert.Equal(t, 3, cfg.Clustering.MinClusterSize)
	assert.Equal(t, 3, cfg.Training.MinFacesThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Training.TrainingInterval)
	assert.Equal(t, 3, cfg.Training.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Contains(t, cfg.Discovery.Extensions, ".jpg")
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  metrics_port: 8888
queue:
  worker_count: 16
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.MetricsPort)
	assert.Equal(t, 16, cfg.Queue.WorkerCount)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `database:
  host: filehost
`)

	t.Setenv("PM_DB_HOST", "envhost")
	t.Setenv("PM_QUEUE_WORKER_COUNT", "32")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, 32, cfg.Queue.WorkerCount)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "photovault", User: "app", Password: "secret"}
	assert.Equal(t, "postgres://app:secret@db:5432/photovault?sslmode=disable", d.DSN())
}
