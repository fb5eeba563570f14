package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "lexicon.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.90, cfg.Sources.Weight("wiktionary", 0), 0.001)
	assert.InDelta(t, 0.85, cfg.Sources.Weight("wordnet", 0), 0.001)
	assert.InDelta(t, 0.80, cfg.Sources.Weight("datamuse", 0), 0.001)
	assert.Equal(t, 10*time.Second, cfg.Sources.Timeout())
	assert.InDelta(t, 0.05, cfg.Fusion.Epsilon, 0.001)
	assert.Equal(t, 10, cfg.Fusion.ListCap)
	assert.InDelta(t, 0.5, cfg.Quality.SimilarityThreshold, 0.001)
	assert.Equal(t, 75, cfg.Quality.PassScore)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, "15m", cfg.Queue.Lease)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "60m", cfg.Cache.ProfileTTL)
	assert.Equal(t, "15m", cfg.Cache.SearchTTL)
	assert.Len(t, cfg.Cache.WarmQueries, 10)
	assert.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/lexicon
log:
  level: debug
  format: console
sources:
  weights:
    wiktionary: 0.95
    custom: 0.4
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.95, cfg.Sources.Weight("wiktionary", 0), 0.001)
	assert.InDelta(t, 0.4, cfg.Sources.Weight("custom", 0), 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Fusion.ListCap)
}

func TestLoadFileExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  max_retries: 5\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
}

func TestLoadFileMissingExplicitPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEXICON_STORE_DRIVER", "postgres")
	t.Setenv("LEXICON_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEXICON_SERVER_PORT", "3000")
	t.Setenv("LEXICON_CACHE_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "lexicon.db"
	cfg.Sources.TimeoutSecs = 10
	cfg.Sources.Weights = map[string]float64{"wiktionary": 0.9}
	cfg.Fusion.Epsilon = 0.05
	cfg.Fusion.ListCap = 10
	cfg.Quality.SimilarityThreshold = 0.5
	cfg.Quality.PassScore = 75
	cfg.Quality.StaleDays = 90
	cfg.Quality.AgingDays = 30
	cfg.Queue.MaxRetries = 3
	cfg.Queue.InitialBackoff = "30s"
	cfg.Queue.MaxBackoff = "30m"
	cfg.Cache.Backend = "memory"
	cfg.Cache.ProfileTTL = "60m"
	cfg.Cache.SearchTTL = "15m"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("enrich"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve.
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidate_QueueLease(t *testing.T) {
	cfg := validDefaults()
	cfg.Queue.Lease = "-5m"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.lease must be a positive duration")

	cfg.Queue.Lease = "10m"
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Sources.Weights["datamuse"] = 1.5
	cfg.Queue.MaxRetries = 0
	cfg.Cache.Backend = "redis"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "sources.weights.datamuse must be between 0 and 1")
	assert.Contains(t, err.Error(), "queue.max_retries must be >= 1")
	assert.Contains(t, err.Error(), "cache.redis_addr is required")
}

func TestValidate_TTLOrdering(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.SearchTTL = "2h"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile_ttl must be longer than cache.search_ttl")

	cfg.Cache.SearchTTL = "soon"
	err = cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.search_ttl is not a duration")
}

func TestValidate_FreshnessWindows(t *testing.T) {
	cfg := validDefaults()
	cfg.Quality.AgingDays = 120

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aging_days must be < quality.stale_days")
}

func TestSourcesWeightFallback(t *testing.T) {
	s := SourcesConfig{Weights: map[string]float64{"wiktionary": 0.9}}
	assert.InDelta(t, 0.9, s.Weight("wiktionary", 0.1), 0.001)
	assert.InDelta(t, 0.1, s.Weight("unknown", 0.1), 0.001)
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, 15*time.Minute, DurationOr("15m", time.Second))
	assert.Equal(t, time.Second, DurationOr("", time.Second))
	assert.Equal(t, time.Second, DurationOr("bogus", time.Second))
}
