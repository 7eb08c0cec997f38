package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Trade     TradeConfig     `mapstructure:"trade"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Events    EventsConfig    `mapstructure:"events"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Per-transaction bounds applied with SET LOCAL. Zero leaves the server default.
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
	MigrationsPath   string        `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Zero values keep the go-redis defaults.
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// TradeConfig tunes the listing engine and its read side.
type TradeConfig struct {
	Currencies      []string      `mapstructure:"currencies"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	ListingCacheTTL time.Duration `mapstructure:"listing_cache_ttl"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

// CatalogConfig lists tradeable items per inventory bucket.
// An empty General list accepts any item that is not food.
type CatalogConfig struct {
	Food    []string `mapstructure:"food"`
	General []string `mapstructure:"general"`
}

type EventsConfig struct {
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// KafkaConfig enables the settlement event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type WebSocketConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// StorageConfig selects the persistence backend: postgres or memory.
type StorageConfig struct {
	Driver       string        `mapstructure:"driver"`
	SeedAccounts []SeedAccount `mapstructure:"seed_accounts"`
}

// SeedAccount pre-provisions an account in the memory store.
type SeedAccount struct {
	ID      string           `mapstructure:"id"`
	Balance int64            `mapstructure:"balance"`
	Food    map[string]int64 `mapstructure:"food"`
	General map[string]int64 `mapstructure:"general"`
}

type RateLimitConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Write   RateRule `mapstructure:"write"`
	Read    RateRule `mapstructure:"read"`
}

type RateRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: IDM_ (Idle Market).
// Nested keys use underscore: IDM_DATABASE_HOST, IDM_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "idle_market")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "2s")
	v.SetDefault("redis.write_timeout", "2s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "idle-market")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("trade.currencies", []string{"coins"})
	v.SetDefault("trade.default_page_size", 20)
	v.SetDefault("trade.max_page_size", 100)
	v.SetDefault("trade.listing_cache_ttl", "30s")
	v.SetDefault("trade.idempotency_ttl", "24h")
	v.SetDefault("catalog.food", []string{})
	v.SetDefault("catalog.general", []string{})
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "listing-events")
	v.SetDefault("events.kafka.batch_timeout", "5ms")
	v.SetDefault("events.kafka.write_timeout", "5s")
	v.SetDefault("events.websocket.enabled", true)
	v.SetDefault("events.websocket.buffer_size", 256)
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.write.limit", 60)
	v.SetDefault("rate_limit.write.window", "1m")
	v.SetDefault("rate_limit.read.limit", 300)
	v.SetDefault("rate_limit.read.window", "1m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: IDM_DATABASE_HOST -> database.host
	v.SetEnvPrefix("IDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be %q or %q", c.Storage.Driver, StorageDriverPostgres, StorageDriverMemory))
	}
	if len(c.Trade.Currencies) == 0 {
		errs = append(errs, errors.New("trade.currencies must not be empty"))
	}
	if c.Trade.DefaultPageSize <= 0 || c.Trade.MaxPageSize < c.Trade.DefaultPageSize {
		errs = append(errs, errors.New("trade page sizes must satisfy 0 < default_page_size <= max_page_size"))
	}
	for _, item := range c.Catalog.Food {
		for _, g := range c.Catalog.General {
			if item == g {
				errs = append(errs, fmt.Errorf("catalog item %q is listed as both food and general", item))
			}
		}
	}

	return errors.Join(errs...)
}
