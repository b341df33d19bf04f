package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLEXMAN_API_BASE", "")
	t.Setenv("PLEXMAN_JWT_SECRET", "")
	t.Setenv("PLEXMAN_DATA_DIR", "")
	t.Setenv("PLEXMAN_ENV", "")

	cfg := Load()
	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Empty(t, cfg.JWTSecret)
	assert.False(t, cfg.Production)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PLEXMAN_API_BASE", "https://media.example.com/api")
	t.Setenv("PLEXMAN_JWT_SECRET", "supersecret")
	t.Setenv("PLEXMAN_DATA_DIR", "/var/lib/plexman")
	t.Setenv("PLEXMAN_ENV", "production")

	cfg := Load()
	assert.Equal(t, "https://media.example.com/api", cfg.APIBase)
	assert.Equal(t, "supersecret", cfg.JWTSecret)
	assert.Equal(t, "/var/lib/plexman", cfg.DataDir)
	assert.True(t, cfg.Production)
}
