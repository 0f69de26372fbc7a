package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Clicks    ClicksConfig
	Store     StoreConfig
	Log       LogConfig
	Auth      AuthConfig
}

type AppConfig struct {
	Env        string
	Port       string
	BaseURL    string
	InstanceID string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

type RateLimitConfig struct {
	Requests int
	Duration time.Duration
}

// CacheConfig controls read caching. A zero TTL makes every read go to the store;
// click writes are still batched.
type CacheConfig struct {
	TTL time.Duration
}

type ClicksConfig struct {
	Buffer         string // memory | redis
	BatchThreshold int64
	FlushInterval  time.Duration
}

type StoreConfig struct {
	Driver      string // postgres | memory
	AutoMigrate bool
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type AuthConfig struct {
	BasicUser     string
	BasicPassword string
}

func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file (optional, env vars take precedence)
	_ = viper.ReadInConfig()

	cfg := &Config{
		App: AppConfig{
			Env:        viper.GetString("APP_ENV"),
			Port:       viper.GetString("APP_PORT"),
			BaseURL:    viper.GetString("APP_BASE_URL"),
			InstanceID: viper.GetString("APP_INSTANCE_ID"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetString("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			MaxConns: viper.GetInt("POSTGRES_MAX_CONNS"),
			MinConns: viper.GetInt("POSTGRES_MIN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetDuration("RATE_LIMIT_DURATION"),
		},
		Cache: CacheConfig{
			TTL: viper.GetDuration("CACHE_TTL"),
		},
		Clicks: ClicksConfig{
			Buffer:         viper.GetString("CLICK_BUFFER"),
			BatchThreshold: viper.GetInt64("CLICK_BATCH_THRESHOLD"),
			FlushInterval:  viper.GetDuration("CLICK_FLUSH_INTERVAL"),
		},
		Store: StoreConfig{
			Driver:      viper.GetString("STORE_DRIVER"),
			AutoMigrate: viper.GetBool("STORE_AUTO_MIGRATE"),
		},
		Log: LogConfig{
			File:       viper.GetString("LOG_FILE"),
			MaxSizeMB:  viper.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: viper.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: viper.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Auth: AuthConfig{
			BasicUser:     viper.GetString("AUTH_BASIC_USER"),
			BasicPassword: viper.GetString("AUTH_BASIC_PASSWORD"),
		},
	}

	if cfg.App.InstanceID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.App.InstanceID = host
		} else {
			cfg.App.InstanceID = "default"
		}
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_BASE_URL", "http://localhost")
	viper.SetDefault("APP_INSTANCE_ID", "")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_USER", "cloak")
	viper.SetDefault("POSTGRES_PASSWORD", "cloak")
	viper.SetDefault("POSTGRES_DB", "cloak")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 25)
	viper.SetDefault("POSTGRES_MIN_CONNS", 5)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 10)

	viper.SetDefault("RATE_LIMIT_REQUESTS", 600)
	viper.SetDefault("RATE_LIMIT_DURATION", "1m")

	viper.SetDefault("CACHE_TTL", "0")

	viper.SetDefault("CLICK_BUFFER", "memory")
	viper.SetDefault("CLICK_BATCH_THRESHOLD", 10)
	viper.SetDefault("CLICK_FLUSH_INTERVAL", "1s")

	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("STORE_AUTO_MIGRATE", true)

	viper.SetDefault("LOG_FILE", "")
	viper.SetDefault("LOG_MAX_SIZE_MB", 100)
	viper.SetDefault("LOG_MAX_BACKUPS", 5)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 30)

	viper.SetDefault("AUTH_BASIC_USER", "")
	viper.SetDefault("AUTH_BASIC_PASSWORD", "")
}

func (c *PostgresConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
