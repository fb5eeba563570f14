package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Fusion      FusionConfig      `yaml:"fusion" mapstructure:"fusion"`
	Quality     QualityConfig     `yaml:"quality" mapstructure:"quality"`
	Queue       QueueConfig       `yaml:"queue" mapstructure:"queue"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Kafka       KafkaConfig       `yaml:"kafka" mapstructure:"kafka"`
	Slack       SlackConfig       `yaml:"slack" mapstructure:"slack"`
	Maintenance MaintenanceConfig `yaml:"maintenance" mapstructure:"maintenance"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the lexical source adapters.
type SourcesConfig struct {
	// Enabled lists the adapters to register. Empty means all known adapters.
	Enabled     []string           `yaml:"enabled" mapstructure:"enabled"`
	Weights     map[string]float64 `yaml:"weights" mapstructure:"weights"`
	TimeoutSecs int                `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64            `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int                `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string             `yaml:"user_agent" mapstructure:"user_agent"`

	WiktionaryURL string `yaml:"wiktionary_url" mapstructure:"wiktionary_url"`
	DatamuseURL   string `yaml:"datamuse_url" mapstructure:"datamuse_url"`
	FreeDictURL   string `yaml:"freedict_url" mapstructure:"freedict_url"`
}

// Timeout returns the per-adapter deadline.
func (s SourcesConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// Weight returns the configured confidence for a source, or fallback when unset.
func (s SourcesConfig) Weight(name string, fallback float64) float64 {
	if w, ok := s.Weights[name]; ok {
		return w
	}
	return fallback
}

// FusionConfig configures the confidence-weighted merge.
type FusionConfig struct {
	Epsilon float64     `yaml:"epsilon" mapstructure:"epsilon"`
	ListCap int         `yaml:"list_cap" mapstructure:"list_cap"`
	Decay   DecayConfig `yaml:"decay" mapstructure:"decay"`
}

// DecayConfig configures time decay of stored field confidence.
type DecayConfig struct {
	HalfLifeDays float64 `yaml:"half_life_days" mapstructure:"half_life_days"`
	Floor        float64 `yaml:"floor" mapstructure:"floor"`
}

// QualityConfig configures the quality assessment engine.
type QualityConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	PassScore           int     `yaml:"pass_score" mapstructure:"pass_score"`
	RulesFile           string  `yaml:"rules_file" mapstructure:"rules_file"`
	StaleDays           int     `yaml:"stale_days" mapstructure:"stale_days"`
	AgingDays           int     `yaml:"aging_days" mapstructure:"aging_days"`
	// EnrichBelow is the score under which a profile is considered to need enrichment.
	EnrichBelow int `yaml:"enrich_below" mapstructure:"enrich_below"`
}

// QueueConfig configures the enrichment queue.
type QueueConfig struct {
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	DefaultPriority int     `yaml:"default_priority" mapstructure:"default_priority"`
	BatchSize       int     `yaml:"batch_size" mapstructure:"batch_size"`
	InitialBackoff  string  `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff      string  `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier      float64 `yaml:"multiplier" mapstructure:"multiplier"`
	// PollInterval controls how often `serve` drains the queue. Empty disables polling.
	PollInterval string `yaml:"poll_interval" mapstructure:"poll_interval"`
	// Lease is how long an item may stay processing before a drain returns
	// it to pending.
	Lease string `yaml:"lease" mapstructure:"lease"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	Backend       string   `yaml:"backend" mapstructure:"backend"`
	RedisAddr     string   `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string   `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int      `yaml:"redis_db" mapstructure:"redis_db"`
	ProfileTTL    string   `yaml:"profile_ttl" mapstructure:"profile_ttl"`
	SearchTTL     string   `yaml:"search_ttl" mapstructure:"search_ttl"`
	WarmQueries   []string `yaml:"warm_queries" mapstructure:"warm_queries"`
}

// AnthropicConfig holds Anthropic API settings for the AI enhancer.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Weight    float64 `yaml:"weight" mapstructure:"weight"`
}

// KafkaConfig configures profile events. Empty brokers disable Kafka.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" mapstructure:"brokers"`
	UpdatedTopic string   `yaml:"updated_topic" mapstructure:"updated_topic"`
	RequestTopic string   `yaml:"request_topic" mapstructure:"request_topic"`
	GroupID      string   `yaml:"group_id" mapstructure:"group_id"`
}

// SlackConfig configures failed-item alerts. Empty webhook disables them.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
}

// MaintenanceConfig holds cron specs for background jobs.
type MaintenanceConfig struct {
	CacheSweep         string `yaml:"cache_sweep" mapstructure:"cache_sweep"`
	AuditCleanup       string `yaml:"audit_cleanup" mapstructure:"audit_cleanup"`
	CacheWarmup        string `yaml:"cache_warmup" mapstructure:"cache_warmup"`
	AuditRetentionDays int    `yaml:"audit_retention_days" mapstructure:"audit_retention_days"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MetricsEnabled bool     `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from an explicit file path when path is
// non-empty, otherwise from config.yaml in the working directory or
// $HOME/.lexicon.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lexicon")
	}

	// Environment
	v.SetEnvPrefix("LEXICON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lexicon.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("sources.weights", map[string]float64{
		"wiktionary": 0.90,
		"wordnet":    0.85,
		"datamuse":   0.80,
		"freedict":   0.75,
	})
	v.SetDefault("sources.timeout_secs", 10)
	v.SetDefault("sources.rate_limit", 5.0)
	v.SetDefault("sources.max_retries", 2)
	v.SetDefault("sources.user_agent", "lexicon-cli/1.0")
	v.SetDefault("sources.wiktionary_url", "https://en.wiktionary.org/api/rest_v1")
	v.SetDefault("sources.datamuse_url", "https://api.datamuse.com")
	v.SetDefault("sources.freedict_url", "https://api.dictionaryapi.dev/api/v2")

	v.SetDefault("fusion.epsilon", 0.05)
	v.SetDefault("fusion.list_cap", 10)
	v.SetDefault("fusion.decay.half_life_days", 0)
	v.SetDefault("fusion.decay.floor", 0.3)

	v.SetDefault("quality.similarity_threshold", 0.5)
	v.SetDefault("quality.pass_score", 75)
	v.SetDefault("quality.stale_days", 90)
	v.SetDefault("quality.aging_days", 30)
	v.SetDefault("quality.enrich_below", 70)

	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.default_priority", 1)
	v.SetDefault("queue.batch_size", 25)
	v.SetDefault("queue.initial_backoff", "30s")
	v.SetDefault("queue.max_backoff", "30m")
	v.SetDefault("queue.multiplier", 2.0)
	v.SetDefault("queue.poll_interval", "1m")
	v.SetDefault("queue.lease", "15m")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.profile_ttl", "60m")
	v.SetDefault("cache.search_ttl", "15m")
	v.SetDefault("cache.warm_queries", []string{
		"biology", "psychology", "technology", "philosophy", "literature",
		"science", "history", "mathematics", "art", "music",
	})

	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.weight", 0.70)

	v.SetDefault("kafka.updated_topic", "lexicon.profile.updated")
	v.SetDefault("kafka.request_topic", "lexicon.enrich.requested")
	v.SetDefault("kafka.group_id", "lexicon-cli")

	v.SetDefault("maintenance.cache_sweep", "@every 1h")
	v.SetDefault("maintenance.audit_cleanup", "@daily")
	v.SetDefault("maintenance.cache_warmup", "@every 6h")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the configuration for the given mode ("enrich" or "serve")
// and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "enrich":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	for name, w := range c.Sources.Weights {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("sources.weights.%s must be between 0 and 1", name))
		}
	}
	if c.Sources.TimeoutSecs <= 0 {
		errs = append(errs, "sources.timeout_secs must be > 0")
	}

	if c.Fusion.Epsilon < 0 || c.Fusion.Epsilon >= 1 {
		errs = append(errs, "fusion.epsilon must be in [0, 1)")
	}
	if c.Fusion.ListCap <= 0 {
		errs = append(errs, "fusion.list_cap must be > 0")
	}

	if c.Quality.SimilarityThreshold < 0 || c.Quality.SimilarityThreshold > 1 {
		errs = append(errs, "quality.similarity_threshold must be between 0 and 1")
	}
	if c.Quality.PassScore < 0 || c.Quality.PassScore > 100 {
		errs = append(errs, "quality.pass_score must be between 0 and 100")
	}
	if c.Quality.AgingDays >= c.Quality.StaleDays {
		errs = append(errs, "quality.aging_days must be < quality.stale_days")
	}

	if c.Queue.MaxRetries < 1 {
		errs = append(errs, "queue.max_retries must be >= 1")
	}
	for key, val := range map[string]string{
		"queue.initial_backoff": c.Queue.InitialBackoff,
		"queue.max_backoff":     c.Queue.MaxBackoff,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			errs = append(errs, fmt.Sprintf("%s is not a duration: %q", key, val))
		}
	}
	if c.Queue.Lease != "" {
		if d, err := time.ParseDuration(c.Queue.Lease); err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("queue.lease must be a positive duration, got %q", c.Queue.Lease))
		}
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	profileTTL, perr := time.ParseDuration(c.Cache.ProfileTTL)
	searchTTL, serr := time.ParseDuration(c.Cache.SearchTTL)
	switch {
	case perr != nil:
		errs = append(errs, fmt.Sprintf("cache.profile_ttl is not a duration: %q", c.Cache.ProfileTTL))
	case serr != nil:
		errs = append(errs, fmt.Sprintf("cache.search_ttl is not a duration: %q", c.Cache.SearchTTL))
	case profileTTL <= searchTTL:
		errs = append(errs, "cache.profile_ttl must be longer than cache.search_ttl")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// DurationOr parses a duration string, returning fallback when it is empty or invalid.
func DurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || s == "" {
		return fallback
	}
	return d
}
