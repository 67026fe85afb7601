package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	os.Clearenv()

	cfg, err := Load(filepath.Join(dir, "data"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 30, cfg.TickIntervalSec)
	assert.Equal(t, "America/New_York", cfg.TradingTimezone)
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.AnalysesDir)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	os.Clearenv()
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GO_PORT", "9001")
	t.Setenv("TICK_INTERVAL_SECONDS", "15")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load(filepath.Join(dir, "data"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 15, cfg.TickIntervalSec)
	assert.True(t, cfg.DevMode)
}

func TestValidate_RejectsBadTickInterval(t *testing.T) {
	cfg := &Config{TickIntervalSec: 0, Port: 8001}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{TickIntervalSec: 30, Port: 0}
	assert.Error(t, cfg.Validate())
}
