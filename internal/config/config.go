package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/Renzios/sharerapy-harness/internal/datasource/postgres"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
)

const (
	ModeAuto   = "auto"
	ModeRemote = "remote"
	ModeMock   = "mock"
)

const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
	DriverNone      = ""
)

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Backend   BackendConfig       `mapstructure:"backend"`
	Breaker   BreakerConfig       `mapstructure:"breaker"`
	Existence ExistenceConfig     `mapstructure:"existence"`
	Paging    PagingConfig        `mapstructure:"paging"`
	Lookup    LookupConfig        `mapstructure:"lookup"`
	Auth      AuthConfig          `mapstructure:"auth"`
	Database  postgres.PoolConfig `mapstructure:"database"`
	Events    EventsConfig        `mapstructure:"events"`
	Log       logger.Config       `mapstructure:"log"`
	Credentials
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

type BackendConfig struct {
	Mode           string        `mapstructure:"mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures uint32        `mapstructure:"max_failures"`
}

type ExistenceConfig struct {
	MaxIDLength     int    `mapstructure:"max_id_length"`
	MissingSentinel string `mapstructure:"missing_sentinel"`
	UnknownFound    bool   `mapstructure:"unknown_found"`

	// SyntheticTTL bounds how long ids of fallback records are remembered.
	SyntheticTTL time.Duration `mapstructure:"synthetic_ttl"`
}

type PagingConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type LookupConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// EventsConfig enables mutation events on Redis when RedisURL is set.
type EventsConfig struct {
	RedisURL string `mapstructure:"redis_url"`
	Prefix   string `mapstructure:"prefix"`
}

// Credentials locate the backend. They keep the variable names used by the
// application under test.
type Credentials struct {
	SupabaseURL string `mapstructure:"-" envconfig:"NEXT_PUBLIC_SUPABASE_URL"`
	SupabaseKey string `mapstructure:"-" envconfig:"NEXT_PUBLIC_SUPABASE_PUBLISHABLE_KEY"`
	DatabaseURL string `mapstructure:"-" envconfig:"DATABASE_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("backend.mode", ModeAuto)
	v.SetDefault("backend.request_timeout", 5*time.Second)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.max_failures", 5)

	v.SetDefault("existence.max_id_length", 36)
	v.SetDefault("existence.missing_sentinel", "missing")
	v.SetDefault("existence.unknown_found", false)
	v.SetDefault("existence.synthetic_ttl", 30*time.Minute)

	v.SetDefault("paging.default_page_size", 20)
	v.SetDefault("paging.max_page_size", 100)

	v.SetDefault("lookup.cache_ttl", 5*time.Minute)

	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("events.redis_url", "")
	v.SetDefault("events.prefix", "harness")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/harness.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 7)
}

// LoadConfig reads config.yaml from . or ./config when present, applies
// HARNESS_ environment overrides and reads the backend credentials.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("HARNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := envconfig.Process("", &config.Credentials); err != nil {
		return nil, fmt.Errorf("failed to read backend credentials: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case ModeAuto, ModeMock:
	case ModeRemote:
		if c.Driver() == DriverNone {
			return fmt.Errorf("backend mode %q needs NEXT_PUBLIC_SUPABASE_URL and NEXT_PUBLIC_SUPABASE_PUBLISHABLE_KEY or DATABASE_URL", ModeRemote)
		}
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}
	if c.Paging.DefaultPageSize <= 0 {
		return fmt.Errorf("paging.default_page_size must be positive")
	}
	return nil
}

// Driver names the backend the credentials point at. PostgREST wins when
// both are configured.
func (c *Config) Driver() string {
	switch {
	case c.SupabaseURL != "" && c.SupabaseKey != "":
		return DriverPostgREST
	case c.DatabaseURL != "":
		return DriverPostgres
	default:
		return DriverNone
	}
}

// Mock reports whether the run answers everything locally.
func (c *Config) Mock() bool {
	switch c.Backend.Mode {
	case ModeMock:
		return true
	case ModeRemote:
		return false
	default:
		return c.Driver() == DriverNone
	}
}

func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
