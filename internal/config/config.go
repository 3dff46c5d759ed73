package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	// HTTP
	HTTPPort string

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Scheduler
	TickIntervalSec    int
	RefreshIntervalSec int
	SimWorkers         int

	// Route simulation
	CycleSeconds         int
	AssumedTravelSeconds int
	JitterDegrees        float64
	JitterEnabled        bool

	// Scenario replay
	VariationPct float64

	// Trigger cooldowns
	DefaultCooldownSec int

	// Logging
	LogLevel      string
	LogFilePath   string
	LogMaxAgeDays int

	// Auth
	ValidAPIKeys []string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8002"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "fleet_user"),
		DBPassword:           getEnv("DB_PASSWORD", "fleet_password"),
		DBName:               getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 10)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		TickIntervalSec:      getEnvInt("TICK_INTERVAL_SEC", 30),
		RefreshIntervalSec:   getEnvInt("REFRESH_INTERVAL_SEC", 300),
		SimWorkers:           getEnvInt("SIM_WORKERS", 8),
		CycleSeconds:         getEnvInt("SIM_CYCLE_SECONDS", 120),
		AssumedTravelSeconds: getEnvInt("SIM_TRAVEL_SECONDS", 1200),
		JitterDegrees:        getEnvFloat("SIM_JITTER_DEGREES", 0.001),
		JitterEnabled:        getEnvBool("SIM_JITTER_ENABLED", true),
		VariationPct:         getEnvFloat("SIM_VARIATION_PCT", 10),
		DefaultCooldownSec:   getEnvInt("TRIGGER_COOLDOWN_SEC", 300),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		LogFilePath:          getEnv("LOG_FILE_PATH", ""),
		LogMaxAgeDays:        getEnvInt("LOG_MAX_AGE_DAYS", 30),
		ValidAPIKeys:         strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

func (c *Config) DefaultCooldown() time.Duration {
	return time.Duration(c.DefaultCooldownSec) * time.Second
}

// CompressionFactor maps wall-clock seconds inside a simulation cycle onto
// simulated traversal seconds. With the defaults (1200s assumed traversal,
// 120s cycle) one real second advances the route by ten simulated seconds.
func (c *Config) CompressionFactor() float64 {
	if c.CycleSeconds <= 0 {
		return 1
	}
	return float64(c.AssumedTravelSeconds) / float64(c.CycleSeconds)
}

func (c *Config) GetLogLevel() log.Level {
	switch c.LogLevel {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
