package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	t.Setenv("AEROVISION_STORAGE_LOCAL_PATH", uploads)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 2*time.Second, cfg.Mailbox.PollInterval)
	assert.Equal(t, 64, cfg.Mailbox.ClientBuffer)
	assert.Equal(t, "admin@aerovision.com", cfg.Admin.Email)
	assert.False(t, cfg.Redis.Enabled())
	assert.DirExists(t, uploads)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
database:
  driver: postgres
  host: db.internal
  port: 5432
jwt:
  secret: test-secret
  expire_hours: 2
storage:
  type: minio
redis:
  host: cache.internal
mailbox:
  poll_interval_seconds: 5
  client_buffer: 8
cors:
  allowed_origins:
    - https://academy.example.com
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 5*time.Second, cfg.Mailbox.PollInterval)
	assert.Equal(t, 8, cfg.Mailbox.ClientBuffer)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"https://academy.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := writeConfig(t, "storage:\n  type: minio\n")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("ADMIN_EMAIL", "root@example.com")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "root@example.com", cfg.Admin.Email)
}

func TestLoadConfigValidation(t *testing.T) {
	dir := writeConfig(t, "server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  type: minio\n")
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")

	dir = writeConfig(t, "database:\n  driver: oracle\nstorage:\n  type: minio\n")
	_, err = LoadConfig(dir)
	assert.ErrorContains(t, err, "unsupported database driver")
}
