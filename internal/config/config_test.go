package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	for _, key := range []string{"PORT", "DEV_MODE", "LOG_LEVEL", "PRICE_STALENESS_HOURS", "PORTFOLIO_SWEEP_INTERVAL_MINUTES"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.PriceStalenessWindow)
	assert.Equal(t, 60*time.Minute, cfg.PortfolioSweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("PRICE_STALENESS_HOURS", "6")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 6*time.Hour, cfg.PriceStalenessWindow)
}

func TestLoad_ResolvesDataDirToAbsolutePath(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, len(cfg.DataDir) > 0)

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestValidate_RejectsInvalidPort(t *testing.T) {
	cfg := &Config{Port: 0, PriceStalenessWindow: time.Hour}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveStalenessWindow(t *testing.T) {
	cfg := &Config{Port: 8080, PriceStalenessWindow: 0}
	err := cfg.Validate()
	assert.Error(t, err)
}
