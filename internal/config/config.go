// Package config provides configuration management for the recommendation engine.
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

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for the database, cache snapshot and peer data
	Port                int
	LogLevel            string
	DevMode             bool
	CacheExpiry         time.Duration // Snapshot age beyond which a fresh fetch is forced
	MaxFetchRetries     int           // Per-ticker retrieval attempts
	MinUsableTickers    int           // Below this the data-load cycle is a hard failure
	DefaultTopN         int
	ClusterSeed         int64     // Seed for k-means initialization; fixed for reproducible runs
	PeerPreferencesPath string    // CSV with historical user preferences; optional
	ComplementCorrTiers []float64 // Ordered |correlation| ceilings tried during complement selection
	RefreshCronSpec     string    // Schedule for the snapshot pre-warm job
}

// Load reads configuration from environment variables, with a .env file
// honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("ETF_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("ETF_PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		CacheExpiry:         time.Duration(getEnvAsInt("CACHE_EXPIRY_HOURS", 6)) * time.Hour,
		MaxFetchRetries:     getEnvAsInt("MAX_FETCH_RETRIES", 3),
		MinUsableTickers:    getEnvAsInt("MIN_USABLE_TICKERS", 5),
		DefaultTopN:         getEnvAsInt("DEFAULT_TOP_N", 7),
		ClusterSeed:         int64(getEnvAsInt("CLUSTER_SEED", 42)),
		PeerPreferencesPath: getEnv("PEER_PREFERENCES_PATH", filepath.Join(absDataDir, "user_etf_preferences.csv")),
		ComplementCorrTiers: getEnvAsFloats("COMPLEMENT_CORR_TIERS", []float64{0.5, 1.0}),
		RefreshCronSpec:     getEnv("REFRESH_CRON", "0 */5 * * *"),
	}

	if cfg.MaxFetchRetries < 1 {
		return nil, fmt.Errorf("MAX_FETCH_RETRIES must be >= 1, got %d", cfg.MaxFetchRetries)
	}
	if cfg.MinUsableTickers < 1 {
		return nil, fmt.Errorf("MIN_USABLE_TICKERS must be >= 1, got %d", cfg.MinUsableTickers)
	}
	if len(cfg.ComplementCorrTiers) == 0 {
		return nil, fmt.Errorf("COMPLEMENT_CORR_TIERS must list at least one threshold")
	}

	return cfg, nil
}

// SnapshotPath returns the location of the price-data cache snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "etf_data_cache.msgpack")
}

// DatabasePath returns the location of the engine database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "engine.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsFloats parses a comma-separated float list. Malformed entries
// invalidate the whole value and the fallback is used instead.
func getEnvAsFloats(key string, fallback []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fallback
		}
		out = append(out, parsed)
	}
	return out
}
