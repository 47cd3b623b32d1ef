package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Refresh      RefreshConfig      `mapstructure:"refresh"`
	PriceFeed    PriceFeedConfig    `mapstructure:"pricefeed"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Store        StoreConfig        `mapstructure:"store"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RefreshConfig selects and tunes the observation source
type RefreshConfig struct {
	Source     string        `mapstructure:"source"` // "simulated" or "http"
	Magnitude  float64       `mapstructure:"magnitude"`
	FloorPrice float64       `mapstructure:"floor_price"`
	Delay      time.Duration `mapstructure:"delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PriceFeedConfig holds configuration for fetching supplier pages
type PriceFeedConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryWait         time.Duration `mapstructure:"retry_wait"` // base backoff, doubled per attempt
	PriceSelector     string        `mapstructure:"price_selector"`
	SearchPath        string        `mapstructure:"search_path"`
	Workers           int           `mapstructure:"workers"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds snapshot persistence configuration
type StoreConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
	Key      string `mapstructure:"key"`
	Seed     bool   `mapstructure:"seed"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// SubscriptionConfig selects the tier whose limits are enforced
type SubscriptionConfig struct {
	Tier string `mapstructure:"tier"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// PRICELENS_REFRESH_FLOOR_PRICE overrides refresh.floor_price
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults apply without it
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("refresh.source", "simulated")
	v.SetDefault("refresh.magnitude", 4.0) // ±$2 per pass
	v.SetDefault("refresh.floor_price", 0.99)
	v.SetDefault("refresh.delay", "3s")
	v.SetDefault("refresh.timeout", "2m")

	v.SetDefault("pricefeed.user_agent", "PriceLens/1.0")
	v.SetDefault("pricefeed.timeout", "30s")
	v.SetDefault("pricefeed.requests_per_second", 2.0)
	v.SetDefault("pricefeed.burst", 5)
	v.SetDefault("pricefeed.max_retries", 3)
	v.SetDefault("pricefeed.retry_wait", "500ms")
	v.SetDefault("pricefeed.price_selector", ".price")
	v.SetDefault("pricefeed.search_path", "/search?q={sku}")
	v.SetDefault("pricefeed.workers", 4)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.key", "pricelens:snapshot")
	v.SetDefault("store.seed", true)

	v.SetDefault("ratelimit.per_ip", 120)

	v.SetDefault("subscription.tier", "pro")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Refresh.Source != "simulated" && config.Refresh.Source != "http" {
		return fmt.Errorf("refresh source must be 'simulated' or 'http', got: %s", config.Refresh.Source)
	}

	if config.Refresh.Magnitude < 0 {
		return fmt.Errorf("refresh magnitude must not be negative, got: %v", config.Refresh.Magnitude)
	}

	if config.Refresh.FloorPrice < 0 {
		return fmt.Errorf("refresh floor price must not be negative, got: %v", config.Refresh.FloorPrice)
	}

	if config.PriceFeed.RetryWait < 0 {
		return fmt.Errorf("price feed retry wait must not be negative, got: %s", config.PriceFeed.RetryWait)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Store.Type != "memory" && config.Store.Type != "redis" {
		return fmt.Errorf("store type must be 'memory' or 'redis', got: %s", config.Store.Type)
	}

	if config.Store.Type == "redis" && config.Store.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when store type is 'redis'")
	}

	switch config.Subscription.Tier {
	case "free", "pro", "enterprise":
	default:
		return fmt.Errorf("subscription tier must be 'free', 'pro' or 'enterprise', got: %s", config.Subscription.Tier)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("per-IP rate limit must not be negative, got: %d", config.RateLimit.PerIP)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
