package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spotChecklist/internal/adapters/logger" // Import the logger package for Level
)

// Config holds all application configuration.
type Config struct {
	// Market data sources; each is optional. Unconfigured sources keep the
	// previous snapshot's values for their fields.
	RSISourceURL    string
	MACDSourceURL   string
	MarketSourceURL string // funding rate, OI trend, support proximity
	VolumeSourceURL string
	PriceSourceURL  string
	SourceAPIToken  string        // Optional bearer token sent to every source
	FetchTimeout    time.Duration // Per-attempt budget for one source fetch
	FetchMaxTries   int           // Attempts per source before giving up

	// Exchange ticker fallback for price/volume when those endpoints are
	// not configured.
	UseExchangeTicker bool
	Symbol            string

	// Checklist & ledger defaults
	SupportRequired      bool    // Require near-support for a BUY verdict
	DefaultTrancheAmount float64 // Quote-currency amount preloaded for buys

	// Database
	DBPath string

	// Exports
	ExportDir string

	// Logging
	LogLevel logger.Level
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Market data sources
	cfg.RSISourceURL = getEnv("RSI_SOURCE_URL", "")
	cfg.MACDSourceURL = getEnv("MACD_SOURCE_URL", "")
	cfg.MarketSourceURL = getEnv("MARKET_SOURCE_URL", "")
	cfg.VolumeSourceURL = getEnv("VOLUME_SOURCE_URL", "")
	cfg.PriceSourceURL = getEnv("PRICE_SOURCE_URL", "")
	cfg.SourceAPIToken = getEnv("SOURCE_API_TOKEN", "")

	fetchTimeoutSeconds := getEnvAsInt("FETCH_TIMEOUT_SECONDS", 5)
	if fetchTimeoutSeconds <= 0 {
		errs = append(errs, "FETCH_TIMEOUT_SECONDS must be positive")
	}
	cfg.FetchTimeout = time.Duration(fetchTimeoutSeconds) * time.Second

	cfg.FetchMaxTries = getEnvAsInt("FETCH_MAX_TRIES", 3)
	if cfg.FetchMaxTries <= 0 {
		errs = append(errs, "FETCH_MAX_TRIES must be positive")
	}

	// Exchange ticker fallback
	cfg.UseExchangeTicker = getEnvAsBool("USE_EXCHANGE_TICKER", true)
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.UseExchangeTicker && cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set when USE_EXCHANGE_TICKER is enabled")
	}

	// Checklist & ledger defaults
	cfg.SupportRequired = getEnvAsBool("SUPPORT_REQUIRED", false)

	cfg.DefaultTrancheAmount, err = getEnvAsFloatRequired("DEFAULT_TRANCHE_AMOUNT", 1000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_TRANCHE_AMOUNT: %v", err))
	} else if cfg.DefaultTrancheAmount <= 0 {
		errs = append(errs, "DEFAULT_TRANCHE_AMOUNT must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/spot_checklist.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Exports
	cfg.ExportDir = getEnv("EXPORT_DIR", ".")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// For non-required fields, the default is acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
