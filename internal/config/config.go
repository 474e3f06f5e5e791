// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables (.env file)
// and updating configuration from the settings database. Settings database values
// take precedence over environment variables.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
// 3. Update from settings database (takes precedence)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/fundops/compliance-engine/internal/modules/settings"
)

// Config holds application configuration.
//
// Configuration is loaded from environment variables and can be updated
// from the settings database. Settings database values take precedence.
type Config struct {
	DataDir  string // base directory for the SQLite database file, always absolute
	LogLevel string // debug, info, warn, error
	Port     int    // HTTP server port
	DevMode  bool   // development mode: pretty console logging, no response compression

	PriceStalenessWindow  time.Duration // latest price older than this is flagged stale
	PortfolioSweepInterval time.Duration // full-portfolio compliance sweep cadence
	WALCheckpointInterval time.Duration // WAL checkpoint job cadence
	AuditArchivalHour     int           // daily audit export hour (0-23, Eastern)

	AuditArchivalEnabled bool
	AuditArchivalBucket  string
	AuditArchivalRegion  string
}

// Load reads configuration from environment variables.
//
// This function:
// 1. Loads .env file if it exists (via godotenv)
// 2. Reads environment variables with defaults
// 3. Resolves data directory to absolute path
// 4. Creates data directory if it doesn't exist
// 5. Validates configuration
//
// Note: Configuration can be updated later from settings database via UpdateFromSettings().
// Settings database values take precedence over environment variables.
//
// dataDirOverride - Optional CLI flag override for data directory (takes highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("COMPLIANCE_DATA_DIR", "")
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

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PriceStalenessWindow:   time.Duration(getEnvAsInt("PRICE_STALENESS_HOURS", 24)) * time.Hour,
		PortfolioSweepInterval: time.Duration(getEnvAsInt("PORTFOLIO_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		WALCheckpointInterval:  time.Duration(getEnvAsInt("WAL_CHECKPOINT_INTERVAL_MINUTES", 15)) * time.Minute,
		AuditArchivalHour:      getEnvAsInt("AUDIT_ARCHIVAL_HOUR", 2),

		AuditArchivalEnabled: getEnvAsBool("AUDIT_ARCHIVAL_ENABLED", true),
		AuditArchivalBucket:  getEnv("AUDIT_ARCHIVAL_BUCKET", ""),
		AuditArchivalRegion:  getEnv("AUDIT_ARCHIVAL_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings overlays settings-table values onto cfg. Should be
// called after the database is migrated (in di.Wire()). Settings database
// values take precedence over environment variables; an absent or empty
// setting leaves the environment-derived value in place.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	hours, err := settingsRepo.GetFloat("price_staleness_hours", 0)
	if err != nil {
		return fmt.Errorf("failed to get price_staleness_hours from settings: %w", err)
	}
	if hours > 0 {
		c.PriceStalenessWindow = time.Duration(hours * float64(time.Hour))
	}

	sweepMinutes, err := settingsRepo.GetFloat("portfolio_sweep_interval_minutes", 0)
	if err != nil {
		return fmt.Errorf("failed to get portfolio_sweep_interval_minutes from settings: %w", err)
	}
	if sweepMinutes > 0 {
		c.PortfolioSweepInterval = time.Duration(sweepMinutes * float64(time.Minute))
	}

	bucket, err := settingsRepo.Get("audit_archival_bucket")
	if err != nil {
		return fmt.Errorf("failed to get audit_archival_bucket from settings: %w", err)
	}
	if bucket != nil && *bucket != "" {
		c.AuditArchivalBucket = *bucket
	}

	region, err := settingsRepo.Get("audit_archival_region")
	if err != nil {
		return fmt.Errorf("failed to get audit_archival_region from settings: %w", err)
	}
	if region != nil && *region != "" {
		c.AuditArchivalRegion = *region
	}

	return nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.PriceStalenessWindow <= 0 {
		return fmt.Errorf("price staleness window must be positive")
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

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
