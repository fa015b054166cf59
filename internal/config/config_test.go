package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  db: 2
  token_ttl: "30m"
postgres:
  url: "postgres://quiz@localhost/quiz"
auth:
  jwt_secret: "from-file"
  bcrypt_cost: 4
quiz:
  passing_threshold: "80"
  count_unanswered: true
log:
  level: debug
`

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	for _, key := range []string{"PORT", "POSTGRES_URL", "REDIS_ADDR", "REDIS_DB", "LOG_LEVEL", "PASSING_THRESHOLD"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "postgres://quiz@localhost/quiz", cfg.Postgres.URL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.Equal(t, "80", cfg.Quiz.PassingThreshold)
	assert.True(t, cfg.Quiz.CountUnanswered)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUIZ_TEST_A=file\nQUIZ_TEST_B=file\n"), 0o600))
	t.Setenv("QUIZ_TEST_A", "process")
	t.Setenv("QUIZ_TEST_B", "")
	os.Unsetenv("QUIZ_TEST_B")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "process", os.Getenv("QUIZ_TEST_A"))
	assert.Equal(t, "file", os.Getenv("QUIZ_TEST_B"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTLDuration("", 5*time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}
