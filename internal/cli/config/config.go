package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
	"github.com/nam4dev/apy-rest2front-sub001/internal/drafts"
)

// EnvPrefix prefixes every environment override, e.g. APY_ENDPOINT or
// APY_CACHE_BACKEND
const EnvPrefix = "APY"

// Config represents the apy configuration
type Config struct {
	Endpoint   string        `mapstructure:"endpoint"`
	SchemaFile string        `mapstructure:"schema_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	APIKey     string        `mapstructure:"api_key"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	LogLevel   string        `mapstructure:"log_level"`
	Cache      CacheConfig   `mapstructure:"cache"`
	Drafts     DraftsConfig  `mapstructure:"drafts"`
	Mock       MockConfig    `mapstructure:"mock"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// CacheConfig represents the response cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the redis cache backend configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DraftsConfig represents the draft store configuration
type DraftsConfig struct {
	// Driver is sqlite3, postgres or pgx
	Driver string `mapstructure:"driver"`
	// Path is the SQLite file
	Path string `mapstructure:"path"`
	// DSN is the PostgreSQL connection URL
	DSN string `mapstructure:"dsn"`
}

// MockConfig represents the mock backend configuration
type MockConfig struct {
	Addr     string         `mapstructure:"addr"`
	PageSize int            `mapstructure:"page_size"`
	Auth     MockAuthConfig `mapstructure:"auth"`
}

// MockAuthConfig guards the mock backend. Both schemes are off when empty.
type MockAuthConfig struct {
	Secret   string            `mapstructure:"secret"`
	TokenTTL time.Duration     `mapstructure:"token_ttl"`
	Users    map[string]string `mapstructure:"users"`
}

// MetricsConfig toggles request instrumentation
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Options tells Load where to look besides the defaults
type Options struct {
	// File is an explicit config file. When empty apy.yaml is searched in
	// the working directory and a missing file is not an error.
	File string
	// Flags overrides file and environment values. The endpoint and schema
	// flags are bound to their config keys when defined.
	Flags *pflag.FlagSet
}

// flagKeys maps flag names to the config keys they override
var flagKeys = map[string]string{
	"endpoint": "endpoint",
	"schema":   "schema_file",
	"timeout":  "timeout",
}

// Load loads the configuration from apy.yaml, the environment and flags
func Load(opts Options) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("endpoint", "http://localhost:5000")
	v.SetDefault("schema_file", "schemas.yaml")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("api_key", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("cache.backend", cache.BackendNone)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("drafts.driver", drafts.DriverSQLite)
	v.SetDefault("drafts.path", "apy-drafts.db")
	v.SetDefault("drafts.dsn", "")
	v.SetDefault("mock.addr", ":5000")
	v.SetDefault("mock.page_size", 25)
	v.SetDefault("mock.auth.secret", "")
	v.SetDefault("mock.auth.token_ttl", time.Hour)
	v.SetDefault("metrics.enabled", false)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("apy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// CacheOptions converts the cache section into backend options
func (c *Config) CacheOptions() cache.Options {
	base := cache.DefaultConfig()
	if c.Cache.TTL > 0 {
		base.DefaultTTL = c.Cache.TTL
	}
	return cache.Options{
		Backend: c.Cache.Backend,
		Config:  base,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
		},
	}
}

// DraftsSource returns the driver and data source of the draft store
func (c *Config) DraftsSource() (driver, dsn string) {
	if c.Drafts.Driver == drafts.DriverSQLite {
		return c.Drafts.Driver, c.Drafts.Path
	}
	return c.Drafts.Driver, c.Drafts.DSN
}

// Level parses LogLevel
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("endpoint must be an absolute http(s) URL, got: %s", cfg.Endpoint)
		}
	}

	switch cfg.Cache.Backend {
	case cache.BackendNone, cache.BackendMemory, cache.BackendRedis:
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis, got: %s", cfg.Cache.Backend)
	}

	if !drafts.ValidDriver(cfg.Drafts.Driver) {
		return fmt.Errorf("drafts.driver must be one of sqlite3, postgres, pgx, got: %s", cfg.Drafts.Driver)
	}
	if cfg.Drafts.Driver != drafts.DriverSQLite && cfg.Drafts.DSN == "" {
		return fmt.Errorf("drafts.dsn is required with the %s driver", cfg.Drafts.Driver)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got: %s", cfg.Timeout)
	}
	if _, err := cfg.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
