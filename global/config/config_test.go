package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	cfg, err := load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.WS.RequireMembership)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ppchat.yaml")
	yml := `
node_id: 12
ws:
  send_queue: 32
  pong_wait: 30s
  ping_interval: 20s
storage:
  driver: postgres
  postgres:
    dsn: postgres://file
events:
  driver: kafka
  kafka:
    brokers: [a:9092, b:9092]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	env := []string{
		"PPCHAT_STORAGE__POSTGRES__DSN=postgres://env",
		"PPCHAT_WS__REQUIRE_MEMBERSHIP=false",
		"PPCHAT_HTTP__ALLOWED_ORIGINS=http://a, http://b",
		"PORT=8081",
	}
	cfg, err := load(path, env)
	require.NoError(t, err)

	assert.Equal(t, int64(12), cfg.NodeID)
	assert.Equal(t, 32, cfg.WS.SendQueue)
	assert.Equal(t, 30*time.Second, cfg.WS.PongWait)
	assert.Equal(t, "postgres://env", cfg.Storage.Postgres.DSN)
	assert.False(t, cfg.WS.RequireMembership)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	// untouched defaults survive the file layer
	assert.Equal(t, 10*time.Second, cfg.WS.WriteWait)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: json\n"), 0o600))

	cfg, err := load("", []string{EnvConfigPath + "=" + path, "CLIENT_URL=http://web"})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"http://web"}, cfg.HTTP.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"unknown storage", func(c *AppConfig) { c.Storage.Driver = "sqlite" }},
		{"postgres without dsn", func(c *AppConfig) { c.Storage.Driver = StoragePostgres }},
		{"unknown events", func(c *AppConfig) { c.Events.Driver = "amqp" }},
		{"auth without secret", func(c *AppConfig) { c.Auth.Enabled = true }},
		{"zero queue", func(c *AppConfig) { c.WS.SendQueue = 0 }},
		{"ping after pong", func(c *AppConfig) { c.WS.PingInterval = c.WS.PongWait }},
		{"node id", func(c *AppConfig) { c.NodeID = 4096 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errs.Is(err, errs.ErrArgs), "got %v", err)
		})
	}
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ws: [unclosed"), 0o600))
	_, err := load(path, nil)
	assert.Error(t, err)
}
