package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "pledger.db", cfg.DB)
	assert.Equal(t, ":3001", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, LockMemory, cfg.Lock.Backend)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 50*time.Millisecond, cfg.Lock.Retry)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /var/lib/pledger/ledger.db
listen: 127.0.0.1:8080
log:
  format: json
lock:
  backend: redis
  ttl: 10s
redis:
  url: redis://localhost:6379/0
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pledger/ledger.db", cfg.DB)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
	assert.Equal(t, LockRedis, cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: from-file.db\n"), 0o644))
	t.Setenv("PLEDGER_DB", "from-env.db")
	t.Setenv("PLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty db", func(c *Config) { c.DB = "" }, "db path is required"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad backend", func(c *Config) { c.Lock.Backend = "etcd" }, "lock.backend"},
		{"redis without url", func(c *Config) { c.Lock.Backend = LockRedis }, "redis.url is required"},
		{"zero ttl", func(c *Config) { c.Lock.TTL = 0 }, "lock.ttl"},
		{"negative retry", func(c *Config) { c.Lock.Retry = -time.Second }, "lock.retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
