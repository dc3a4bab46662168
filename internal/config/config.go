// Package config loads service configuration from config.yaml with
// environment overrides for sensitive values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration, matching config.yaml.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Refresh   RefreshConfig    `mapstructure:"refresh"`
	Fetch     FetchConfig      `mapstructure:"fetch"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Postgres  PostgresConfig   `mapstructure:"postgres"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// ServerConfig configures the HTTP read API.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug/release/test
}

// RefreshConfig configures the refresh cycle.
type RefreshConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	StartPaused bool          `mapstructure:"start_paused"`
}

// FetchConfig configures the resilient fetch executor.
type FetchConfig struct {
	MaxAttempts   int                 `mapstructure:"max_attempts"`
	BackoffBase   time.Duration       `mapstructure:"backoff_base"`
	Timeout       time.Duration       `mapstructure:"timeout"`
	FallbackHosts map[string][]string `mapstructure:"fallback_hosts"`
}

// CacheConfig configures the fetch cache store.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// PostgresConfig configures the optional snapshot sink.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

// RedisConfig configures the optional change-stream sink.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ProviderConfig describes one upstream odds provider.
type ProviderConfig struct {
	ID       string  `mapstructure:"id"`
	Name     string  `mapstructure:"name"`
	Endpoint string  `mapstructure:"endpoint"`
	APIKey   string  `mapstructure:"api_key"`
	Weight   float64 `mapstructure:"weight"`
	Enabled  bool    `mapstructure:"enabled"`
	// Parser names the payload shape: wurlus, walapp or canonical.
	Parser string `mapstructure:"parser"`
}

// Load reads config/config.yaml, applying defaults and env overrides.
// A .env file, if present, is loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine, defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5010)
	v.SetDefault("server.mode", "release")
	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("refresh.start_paused", false)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_base", "200ms")
	v.SetDefault("fetch.timeout", "8s")
	v.SetDefault("cache.ttl", "60s")
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.janitor_interval", "5m")
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
}

// overrideFromEnv applies environment overrides for values that should not
// live in the YAML file.
func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv("ARGUS_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if addr := os.Getenv("ARGUS_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("ARGUS_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	for i, provider := range cfg.Providers {
		envKey := fmt.Sprintf("ARGUS_PROVIDER_%s_API_KEY", upperID(provider.ID))
		if key := os.Getenv(envKey); key != "" {
			cfg.Providers[i].APIKey = key
		}
	}
}

func upperID(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", "_"))
}
