package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, "data/badger", cfg.Storage.Badger.Path)
	assert.Equal(t, int32(10), cfg.Storage.Postgres.MaxConns)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10.0, cfg.Comments.RatePerMinute)
	assert.Equal(t, 5, cfg.Comments.Burst)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := `
server:
  addr: ":9000"
storage:
  driver: postgres
  postgres:
    url: postgres://file
auth:
  jwt_secret: from-the-file-secret
  token_ttl: 1h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte(yaml), 0o600))

	t.Run("file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
		assert.Equal(t, "postgres://file", cfg.Storage.Postgres.URL)
		assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
		assert.Equal(t, "info", cfg.Log.Level, "defaults fill the gaps")
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("QUILL_SERVER_ADDR", ":7000")
		t.Setenv("QUILL_STORAGE_POSTGRES_URL", "postgres://env")
		t.Setenv("QUILL_COMMENTS_BURST", "9")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.Server.Addr)
		assert.Equal(t, "postgres://env", cfg.Storage.Postgres.URL)
		assert.Equal(t, 9, cfg.Comments.Burst)
	})

	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: DriverBadger},
			Auth:    AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, `unknown storage.driver "mysql"`},
		{"postgres without url", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.postgres.url is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"no ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl"},
		{"negative rate", func(c *Config) { c.Comments.RatePerMinute = -1 }, "comments.rate_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"key":"value"`)

	_, err = LogConfig{Level: "loud"}.NewLogger(&buf)
	assert.Error(t, err)
	_, err = LogConfig{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
