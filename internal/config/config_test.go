package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MATCH_CONCURRENCY", "")
	t.Setenv("LLM_CALL_TIMEOUT", "")
	t.Setenv("MATCH_BATCH_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 4, cfg.LLM.MatchConcurrency)
	assert.Equal(t, 60*time.Second, cfg.LLM.CallTimeout)
	assert.Equal(t, 10*time.Minute, cfg.LLM.BatchTimeout)
	assert.Equal(t, "http://localhost:9998/tika", cfg.Tika.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MATCH_CONCURRENCY", "8")
	t.Setenv("LLM_CALL_TIMEOUT", "15s")
	t.Setenv("MATCH_RATE_PER_SECOND", "2.5")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg := Load()

	assert.Equal(t, 8, cfg.LLM.MatchConcurrency)
	assert.Equal(t, 15*time.Second, cfg.LLM.CallTimeout)
	assert.InDelta(t, 2.5, cfg.LLM.MatchRatePerSec, 1e-9)
	assert.True(t, cfg.Server.LogJSON)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.GetDatabaseDSN())
}

func TestInvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_POLL_INTERVAL", "soon")
	assert.Equal(t, 10*time.Second, Load().Worker.PollInterval)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Env: "production"},
		Storage: StorageConfig{Backend: "local"},
		LLM:     LLMConfig{MatchConcurrency: 2},
	}

	err := cfg.Validate()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "JWT_SECRET", cfgErr.Field)

	cfg.Server.Env = "development"
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Auth.JWTSecret)

	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())
}
