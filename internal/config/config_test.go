package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.Redis.IdempotencyTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
env: production
port: 9090
storage:
  driver: postgres
  database_url: postgres://file/db
  statement_timeout: 5s
  max_conns: 20
  conn_max_idle_time: 5m
jwt:
  secret: s3cret
redis:
  addr: localhost:6379
  idempotency_ttl: 2m
`)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("DB_MIN_CONNS", "4")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://env/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, 5*time.Second, cfg.Storage.StatementTimeout)
	assert.Equal(t, int32(20), cfg.Storage.MaxConns)
	assert.Equal(t, int32(4), cfg.Storage.MinConns)
	assert.Equal(t, 90*time.Minute, cfg.Storage.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Storage.ConnMaxIdleTime)
	assert.Equal(t, 2*time.Minute, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, ":9090", cfg.Addr())
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_PoolBounds(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "8")

	_, err := Load("")
	assert.ErrorContains(t, err, "DB_MIN_CONNS")

	t.Setenv("DB_MAX_CONNS", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "DB_MAX_CONNS")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load("")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")

	_, err := Load("")
	assert.ErrorContains(t, err, "APP_PORT")
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := writeFile(t, ".env", "JWT_ISSUER=dotenv-issuer\n")
	t.Setenv("JWT_ISSUER", "")
	require.NoError(t, os.Unsetenv("JWT_ISSUER"))
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-issuer", cfg.JWT.Issuer)
}
