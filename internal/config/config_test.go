package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	log "github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8002", cfg.HTTPPort)
	assert.Equal(t, "fleet_monitor", cfg.DBName)
	assert.Equal(t, 30, cfg.TickIntervalSec)
	assert.Equal(t, 300, cfg.RefreshIntervalSec)
	assert.Equal(t, 8, cfg.SimWorkers)
	assert.Equal(t, 120, cfg.CycleSeconds)
	assert.Equal(t, 1200, cfg.AssumedTravelSeconds)
	assert.True(t, cfg.JitterEnabled)
	assert.Equal(t, 300, cfg.DefaultCooldownSec)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TICK_INTERVAL_SEC", "10")
	t.Setenv("SIM_CYCLE_SECONDS", "60")
	t.Setenv("SIM_TRAVEL_SECONDS", "600")
	t.Setenv("SIM_JITTER_ENABLED", "false")
	t.Setenv("VALID_API_KEYS", "key-a,key-b")

	cfg := Load()

	assert.Equal(t, 10, cfg.TickIntervalSec)
	assert.Equal(t, 10*time.Second, cfg.TickInterval())
	assert.Equal(t, 60, cfg.CycleSeconds)
	assert.False(t, cfg.JitterEnabled)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.ValidAPIKeys)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TICK_INTERVAL_SEC", "soon")
	t.Setenv("SIM_VARIATION_PCT", "lots")
	t.Setenv("SIM_JITTER_ENABLED", "kinda")

	cfg := Load()

	assert.Equal(t, 30, cfg.TickIntervalSec)
	assert.Equal(t, 10.0, cfg.VariationPct)
	assert.True(t, cfg.JitterEnabled)
}

func TestCompressionFactor(t *testing.T) {
	cfg := &Config{CycleSeconds: 120, AssumedTravelSeconds: 1200}
	assert.Equal(t, 10.0, cfg.CompressionFactor())

	// degenerate cycle falls back to real time
	cfg = &Config{CycleSeconds: 0, AssumedTravelSeconds: 1200}
	assert.Equal(t, 1.0, cfg.CompressionFactor())
}

func TestGetLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "DEBUG"}
	assert.Equal(t, log.DebugLevel, cfg.GetLogLevel())

	cfg = &Config{LogLevel: "nonsense"}
	assert.Equal(t, log.InfoLevel, cfg.GetLogLevel())
}
