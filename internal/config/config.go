package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendSqlite   = "sqlite"
	StorageBackendMemory   = "memory"
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host" env:"BLOGLIST_HOST"`
	Port int    `toml:"port" env:"BLOGLIST_PORT"`

	// logging
	LogLevel      string `toml:"log_level" env:"BLOGLIST_LOG_LEVEL"`
	LogsPath      string `toml:"logs_path" env:"BLOGLIST_LOGS_PATH"`
	LogToStdout   bool   `toml:"log_to_stdout" env:"BLOGLIST_LOG_TO_STDOUT"`
	LogFormatJSON bool   `toml:"log_format_json" env:"BLOGLIST_LOG_FORMAT_JSON"`
	SentryEnabled bool   `toml:"sentry_enabled" env:"BLOGLIST_SENTRY_ENABLED"`
	SentryDSN     string `toml:"-" env:"SENTRY_DSN"`

	// storage
	StorageBackend   string `toml:"storage_backend" env:"BLOGLIST_STORAGE_BACKEND"`
	PostgresHost     string `toml:"postgres_host" env:"BLOGLIST_POSTGRES_HOST"`
	PostgresPort     string `toml:"postgres_port" env:"BLOGLIST_POSTGRES_PORT"`
	PostgresDBName   string `toml:"postgres_db_name" env:"BLOGLIST_POSTGRES_DB_NAME"`
	PostgresUser     string `toml:"postgres_user" env:"BLOGLIST_POSTGRES_USER"`
	PostgresPassword string `toml:"-" env:"BLOGLIST_POSTGRES_PASSWORD"`
	SqlitePath       string `toml:"sqlite_path" env:"BLOGLIST_SQLITE_PATH"`

	// redis is only used for rate limiting write requests; empty host disables it
	RedisHost            string `toml:"redis_host" env:"BLOGLIST_REDIS_HOST"`
	RedisPort            string `toml:"redis_port" env:"BLOGLIST_REDIS_PORT"`
	RedisPassword        string `toml:"-" env:"BLOGLIST_REDIS_PASSWORD"`
	WriteRateLimitPerMin int    `toml:"write_rate_limit_per_min" env:"BLOGLIST_WRITE_RATE_LIMIT_PER_MIN"`

	StatsCacheTTLSeconds int `toml:"stats_cache_ttl_seconds" env:"BLOGLIST_STATS_CACHE_TTL_SECONDS"`

	// telemetry
	PrometheusMetricsHost string `toml:"prometheus_metrics_host" env:"BLOGLIST_METRICS_HOST"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port" env:"BLOGLIST_METRICS_PORT"`
	TracingEnabled        bool   `toml:"tracing_enabled" env:"HONEYCOMB_ENABLED"`

	AllowedOrigins []string `toml:"allowed_origins" env:"BLOGLIST_ALLOWED_ORIGINS" envSeparator:","`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}

	return cfg, nil
}

// Load reads the TOML section for the given env and applies env var overrides on top.
func Load(environment, path string) (*Config, error) {
	var tomlCfg Toml
	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlCfg.Get(environment)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(environment)

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageBackendPostgres
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.PostgresDBName == "" {
		c.PostgresDBName = "bloglist"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.WriteRateLimitPerMin == 0 {
		c.WriteRateLimitPerMin = 60
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.PostgresHost == "" {
			return errors.New("postgres host not set")
		}
	case StorageBackendSqlite:
		if c.SqlitePath == "" {
			return errors.New("sqlite path not set")
		}
	case StorageBackendMemory:
		// nothing to check
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}

	if c.StatsCacheTTLSeconds < 0 {
		return errors.New("stats cache ttl cannot be negative")
	}

	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
