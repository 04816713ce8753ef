package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "STORAGE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "JWT_SECRET",
		"JWT_ISSUER", "JWT_TTL_MINUTES", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "REDIS_ADDR",
		"REDIS_PASSWORD", "RATE_LIMIT_BURST", "RATE_LIMIT_WINDOW_SECONDS", "WS_MAX_MESSAGE_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "chat-backend", cfg.JWTIssuer)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, int64(4096), cfg.WSMaxMessageSize)
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	_, err := Load()
	require.Error(t, err, "postgres needs DATABASE_URL")

	t.Setenv("STORAGE_DRIVER", "memory")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
storageDriver: sqlite
sqlitePath: /tmp/chat-test.db
jwtSecret: from-file
corsOrigins: ["http://localhost:5173"]
rateLimitBurst: 3
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "/tmp/chat-test.db", cfg.SQLitePath)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.RateLimitBurst)
}
