package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Context   ContextConfig   `mapstructure:"context"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// CacheConfig contains two-tier cache settings
type CacheConfig struct {
	MemoryMaxEntries int    `mapstructure:"memory_max_entries"`
	DiskMaxEntries   int    `mapstructure:"disk_max_entries"`
	DiskDir          string `mapstructure:"disk_dir"`
	DiskEnabled      bool   `mapstructure:"disk_enabled"`
	DefaultTTL       int    `mapstructure:"default_ttl"` // seconds
	PriceTTL         int    `mapstructure:"price_ttl"`
	NewsTTL          int    `mapstructure:"news_ttl"`
	TrendingTTL      int    `mapstructure:"trending_ttl"`
}

// RedisConfig contains optional Redis settings for the persistent cache tier
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig contains token bucket budgets per external resource
type RateLimitConfig struct {
	Default   BucketConfig            `mapstructure:"default"`
	Resources map[string]BucketConfig `mapstructure:"resources"`
}

// BucketConfig describes a single token bucket
type BucketConfig struct {
	Capacity   int     `mapstructure:"capacity"`
	RefillRate float64 `mapstructure:"refill_rate"` // tokens per second
}

// FetchConfig contains retry and circuit breaker settings for the fetch client
type FetchConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffBase    float64 `mapstructure:"backoff_base"` // seconds
	BackoffMax     float64 `mapstructure:"backoff_max"`  // seconds
	BreakerEnabled bool    `mapstructure:"breaker_enabled"`
}

// SentimentConfig contains sentiment scorer settings
type SentimentConfig struct {
	BullishThreshold float64            `mapstructure:"bullish_threshold"`
	BearishThreshold float64            `mapstructure:"bearish_threshold"`
	EngineWeights    map[string]float64 `mapstructure:"engine_weights"`
	CryptoAdjustment float64            `mapstructure:"crypto_adjustment"` // per-term score bump
}

// RiskConfig contains risk assessor settings
type RiskConfig struct {
	LargeCapThreshold    float64 `mapstructure:"large_cap_threshold"`
	MidCapThreshold      float64 `mapstructure:"mid_cap_threshold"`
	SmallCapThreshold    float64 `mapstructure:"small_cap_threshold"`
	VolatilitySaturation float64 `mapstructure:"volatility_saturation"` // abs % change mapping to 100
	LiquiditySaturation  float64 `mapstructure:"liquidity_saturation"`  // volume/mcap ratio mapping to 100
	TierWeight           float64 `mapstructure:"tier_weight"`
	VolatilityWeight     float64 `mapstructure:"volatility_weight"`
	LiquidityWeight      float64 `mapstructure:"liquidity_weight"`
	MediumBand           int     `mapstructure:"medium_band"`
	HighBand             int     `mapstructure:"high_band"`
	ExtremeBand          int     `mapstructure:"extreme_band"`
}

// ReasoningConfig contains reasoning engine settings
type ReasoningConfig struct {
	StrongTrendPct float64 `mapstructure:"strong_trend_pct"`
	MildTrendPct   float64 `mapstructure:"mild_trend_pct"`
}

// ContextConfig contains conversation context store settings
type ContextConfig struct {
	MaxMessages  int    `mapstructure:"max_messages"`
	IdleTTL      int    `mapstructure:"idle_ttl"` // seconds
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("CRYPTOINTEL")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "CryptoIntel")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Cache defaults
	v.SetDefault("cache.memory_max_entries", 1000)
	v.SetDefault("cache.disk_max_entries", 5000)
	v.SetDefault("cache.disk_dir", "./data/cache")
	v.SetDefault("cache.disk_enabled", true)
	v.SetDefault("cache.default_ttl", 300)
	v.SetDefault("cache.price_ttl", 120)
	v.SetDefault("cache.news_ttl", 900)
	v.SetDefault("cache.trending_ttl", 300)

	// Redis defaults (disabled unless configured)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Rate limit defaults
	v.SetDefault("rate_limit.default.capacity", 10)
	v.SetDefault("rate_limit.default.refill_rate", 1.0)
	v.SetDefault("rate_limit.resources.coingecko.capacity", 50)
	v.SetDefault("rate_limit.resources.coingecko.refill_rate", 0.833) // ~50/min
	v.SetDefault("rate_limit.resources.news.capacity", 10)
	v.SetDefault("rate_limit.resources.news.refill_rate", 0.166) // ~10/min

	// Fetch defaults
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base", 1.0)
	v.SetDefault("fetch.backoff_max", 60.0)
	v.SetDefault("fetch.breaker_enabled", true)

	// Sentiment defaults
	v.SetDefault("sentiment.bullish_threshold", 0.1)
	v.SetDefault("sentiment.bearish_threshold", -0.1)
	v.SetDefault("sentiment.crypto_adjustment", 0.1)

	// Risk defaults
	v.SetDefault("risk.large_cap_threshold", 10_000_000_000.0)
	v.SetDefault("risk.mid_cap_threshold", 1_000_000_000.0)
	v.SetDefault("risk.small_cap_threshold", 100_000_000.0)
	v.SetDefault("risk.volatility_saturation", 30.0)
	v.SetDefault("risk.liquidity_saturation", 0.5)
	v.SetDefault("risk.tier_weight", 0.4)
	v.SetDefault("risk.volatility_weight", 0.35)
	v.SetDefault("risk.liquidity_weight", 0.25)
	v.SetDefault("risk.medium_band", 25)
	v.SetDefault("risk.high_band", 50)
	v.SetDefault("risk.extreme_band", 75)

	// Reasoning defaults
	v.SetDefault("reasoning.strong_trend_pct", 10.0)
	v.SetDefault("reasoning.mild_trend_pct", 3.0)

	// Context defaults
	v.SetDefault("context.max_messages", 10)
	v.SetDefault("context.idle_ttl", 1800)
	v.SetDefault("context.snapshot_path", "")
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Cache.MemoryMaxEntries <= 0 {
		return fmt.Errorf("cache.memory_max_entries must be positive, got %d", c.Cache.MemoryMaxEntries)
	}
	if c.Cache.DiskEnabled && c.Cache.DiskMaxEntries <= 0 {
		return fmt.Errorf("cache.disk_max_entries must be positive, got %d", c.Cache.DiskMaxEntries)
	}
	if c.RateLimit.Default.Capacity <= 0 || c.RateLimit.Default.RefillRate <= 0 {
		return fmt.Errorf("rate_limit.default must have positive capacity and refill_rate")
	}
	for name, b := range c.RateLimit.Resources {
		if b.Capacity <= 0 || b.RefillRate <= 0 {
			return fmt.Errorf("rate_limit.resources.%s must have positive capacity and refill_rate", name)
		}
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be non-negative, got %d", c.Fetch.MaxRetries)
	}
	if c.Risk.LargeCapThreshold <= c.Risk.MidCapThreshold ||
		c.Risk.MidCapThreshold <= c.Risk.SmallCapThreshold ||
		c.Risk.SmallCapThreshold <= 0 {
		return fmt.Errorf("risk market cap thresholds must be strictly decreasing and positive")
	}
	if c.Risk.TierWeight+c.Risk.VolatilityWeight+c.Risk.LiquidityWeight <= 0 {
		return fmt.Errorf("risk composite weights must sum to a positive value")
	}
	if !(c.Risk.MediumBand < c.Risk.HighBand && c.Risk.HighBand < c.Risk.ExtremeBand) {
		return fmt.Errorf("risk bands must be strictly increasing")
	}
	if c.Sentiment.BullishThreshold <= c.Sentiment.BearishThreshold {
		return fmt.Errorf("sentiment.bullish_threshold must exceed bearish_threshold")
	}
	if c.Context.MaxMessages <= 0 {
		return fmt.Errorf("context.max_messages must be positive, got %d", c.Context.MaxMessages)
	}
	return nil
}

// DefaultTTLDuration returns the default cache TTL as a duration
func (c *CacheConfig) DefaultTTLDuration() time.Duration {
	return time.Duration(c.DefaultTTL) * time.Second
}

// IdleTTLDuration returns the context idle TTL as a duration
func (c *ContextConfig) IdleTTLDuration() time.Duration {
	return time.Duration(c.IdleTTL) * time.Second
}

// Addr returns the Redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
