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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "file:feedtide.db?cache=shared&mode=rwc&_txlock=immediate", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Schedule.FetchPacing)
	assert.Equal(t, 30*time.Second, cfg.Schedule.FetchTimeout)
	assert.Equal(t, "feedtide/1.0", cfg.Schedule.UserAgent)
	assert.Equal(t, 10*time.Second, cfg.Enrichment.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Enrichment.Pacing)
	assert.False(t, cfg.Enrichment.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  listen: ":9090"
  timeout: 15s
database:
  dsn: "file:test.db"
  max_open_conns: 3
schedule:
  poll_interval: 10m
  fetch_pacing: 250ms
  fetch_timeout: 20s
  user_agent: "custom/2.0"
enrichment:
  enabled: true
  timeout: 5s
  pacing: 200ms
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Schedule.FetchPacing)
	assert.Equal(t, "custom/2.0", cfg.Schedule.UserAgent)
	assert.True(t, cfg.Enrichment.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Enrichment.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Enrichment.Pacing)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_LISTEN_ADDR", ":7070")
	cfg, err := Load(writeConfig(t, "server:\n  listen: \"${TEST_LISTEN_ADDR}\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [not a map"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("poll interval too short", func(t *testing.T) {
		_, err := Load(writeConfig(t, "schedule:\n  poll_interval: 10s\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "poll_interval")
	})

	t.Run("fetch timeout too short", func(t *testing.T) {
		_, err := Load(writeConfig(t, "schedule:\n  fetch_timeout: 100ms\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch_timeout")
	})
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	assert.NoError(t, VerifyAgainstEmbeddedSchema(cfg))

	broken := &Config{}
	assert.Error(t, VerifyAgainstEmbeddedSchema(broken), "empty listen address fails required-field check")
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)
}
