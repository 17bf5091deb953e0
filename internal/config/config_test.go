package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETF_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 6*time.Hour, cfg.CacheExpiry)
	assert.Equal(t, 3, cfg.MaxFetchRetries)
	assert.Equal(t, 5, cfg.MinUsableTickers)
	assert.Equal(t, 7, cfg.DefaultTopN)
	assert.Equal(t, int64(42), cfg.ClusterSeed)
	assert.Equal(t, []float64{0.5, 1.0}, cfg.ComplementCorrTiers)
	assert.Equal(t, "0 */5 * * *", cfg.RefreshCronSpec)
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ETF_DATA_DIR", dir)
	t.Setenv("ETF_PORT", "9999")
	t.Setenv("CACHE_EXPIRY_HOURS", "12")
	t.Setenv("CLUSTER_SEED", "7")
	t.Setenv("COMPLEMENT_CORR_TIERS", "0.3, 0.6, 1.0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 12*time.Hour, cfg.CacheExpiry)
	assert.Equal(t, int64(7), cfg.ClusterSeed)
	assert.Equal(t, []float64{0.3, 0.6, 1.0}, cfg.ComplementCorrTiers)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("ETF_DATA_DIR", t.TempDir())
	t.Setenv("MIN_USABLE_TICKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedTiersFallBack(t *testing.T) {
	t.Setenv("ETF_DATA_DIR", t.TempDir())
	t.Setenv("COMPLEMENT_CORR_TIERS", "0.3,banana")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.0}, cfg.ComplementCorrTiers)
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ETF_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.DataDir, "etf_data_cache.msgpack"), cfg.SnapshotPath())
	assert.Equal(t, filepath.Join(cfg.DataDir, "engine.db"), cfg.DatabasePath())
}
