package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("CLAUDE_API_KEY", "sk-test123")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("LOG_FORMAT", "text")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "/custom/db.sqlite", cfg.DSN())
	assert.Equal(t, "sk-test123", cfg.ClaudeAPIKey)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdle)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadPostgresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/fampantry")

	cfg := Load()

	assert.Equal(t, "postgres://u:p@localhost/fampantry", cfg.DSN())
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("LOOKUP_TIMEOUT", "soon")
	t.Setenv("TOKEN_TTL", "-5m")

	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
}
