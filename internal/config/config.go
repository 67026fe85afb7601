// Package config provides configuration management functionality.
//
// Configuration is loaded from environment variables (.env file) and can be
// refreshed from the Settings Store for the handful of keys that are
// hot-reloadable at the pipeline level (see internal/settings). Environment
// configuration covers process-level concerns only: where things live, how
// loud to log, how often to tick.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level application configuration.
type Config struct {
	DataDir         string // base directory for the SQLite database (always absolute)
	AnalysesDir     string // directory for analysis artifacts (always absolute)
	LogLevel        string // debug, info, warn, error
	Port            int    // admin HTTP server port
	DevMode         bool
	TickIntervalSec int    // service loop tick interval, seconds
	TradingTimezone string // IANA timezone name for trading-hours calculations

	ReasoningBinaryPath string // path to the external reasoning invocation binary

	VectorStoreURL     string        // base URL of the external vector similarity store; empty disables it
	GraphStoreURL      string        // base URL of the external graph store; empty disables it
	ExternalStoreTimeout time.Duration // per-call timeout for both external store clients

	S3Bucket          string // backup/restore object storage bucket; empty disables backup/restore
	S3Region          string
	S3Endpoint        string // non-empty for a non-AWS S3-compatible endpoint
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	BackupStageDir     string // scratch directory for snapshot/archive staging before upload
	BackupRetentionDays int   // days of backups to retain; 0 keeps everything beyond the floor of 3

	MarketHolidays []string // YYYY-MM-DD dates excluded from trading days, in TradingTimezone
}

// Load reads configuration from environment variables.
//
// dataDirOverride - optional override for the data directory (highest priority).
func Load(dataDirOverride ...string) (*Config, error) {
	// godotenv.Load returns an error if .env doesn't exist, which is fine.
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	analysesDir := getEnv("ANALYSES_DIR", filepath.Join(absDataDir, "analyses"))
	absAnalysesDir, err := filepath.Abs(analysesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analyses directory path: %w", err)
	}
	if err := os.MkdirAll(absAnalysesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create analyses directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		AnalysesDir:     absAnalysesDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("GO_PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		TickIntervalSec: getEnvAsInt("TICK_INTERVAL_SECONDS", 30),
		TradingTimezone: getEnv("TRADING_TIMEZONE", "America/New_York"),

		ReasoningBinaryPath: getEnv("REASONING_BINARY_PATH", "reasoning-invoke"),

		VectorStoreURL:       getEnv("VECTOR_STORE_URL", ""),
		GraphStoreURL:        getEnv("GRAPH_STORE_URL", ""),
		ExternalStoreTimeout: time.Duration(getEnvAsInt("EXTERNAL_STORE_TIMEOUT_SECONDS", 30)) * time.Second,

		S3Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		S3Region:          getEnv("BACKUP_S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnvAsBool("BACKUP_S3_USE_PATH_STYLE", false),

		BackupStageDir:      getEnv("BACKUP_STAGE_DIR", filepath.Join(absDataDir, "backup-stage")),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),

		MarketHolidays: getEnvAsList("MARKET_HOLIDAYS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for values that would make startup unsafe.
// Unrecognized or missing optional values fall back to defaults rather than
// failing startup; this only rejects outright-impossible values.
func (c *Config) Validate() error {
	if c.TickIntervalSec <= 0 {
		return fmt.Errorf("TICK_INTERVAL_SECONDS must be positive, got %d", c.TickIntervalSec)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be a valid port number, got %d", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, trimming
// whitespace around each element and dropping empty ones. Returns nil if
// the variable is unset or empty.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
