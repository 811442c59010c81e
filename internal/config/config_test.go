package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Hour, cfg.TVConfigRefresh)
	assert.Equal(t, 48*time.Hour, cfg.SessionRefresh)
	assert.Equal(t, 48*time.Hour, cfg.BlobCacheTTL)
	assert.Equal(t, 6*time.Hour, cfg.PoTokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LivenessCheck)
	assert.Empty(t, cfg.PlayerID)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ONESIE_TVCONFIG_REFRESH", "1h")
	t.Setenv("ONESIE_PLAYER_ID", "0004de42")
	t.Setenv("ONESIE_LOG_LEVEL", "debug")
	t.Setenv("ONESIE_LIVENESS_CHECK", "false")
	t.Setenv("ONESIE_QUEUE_DEPTH", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.TVConfigRefresh)
	assert.Equal(t, "0004de42", cfg.PlayerID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LivenessCheck)
	assert.Equal(t, 16, cfg.QueueDepth)
	// Untouched values keep their defaults.
	assert.Equal(t, 48*time.Hour, cfg.SessionRefresh)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("ONESIE_POTOKEN_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := Defaults()
	cfg.TVConfigRefresh = 0
	cfg.SessionRefresh = -time.Hour
	cfg.QueueDepth = -1

	errs := Validate(cfg)
	assert.Len(t, errs, 3)
}
