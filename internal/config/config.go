package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the RollReview server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
	MaxPayloadBytes    int64
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type ReconcileConfig struct {
	// GenericTechniqueName is the natural key of the sentinel technique that
	// drills fall back to when they name no related technique.
	GenericTechniqueName string
	// ProjectionCacheTTL of zero disables projection caching.
	ProjectionCacheTTL time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("ROLLREVIEW_PORT", 8080),
			Env:                envString("ROLLREVIEW_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			MaxPayloadBytes:    int64(envInt("MAX_PAYLOAD_BYTES", 1<<20)),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Reconcile: ReconcileConfig{
			GenericTechniqueName: envString("GENERIC_TECHNIQUE_NAME", "Generic"),
			ProjectionCacheTTL:   projectionCacheTTL(),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database section. Used by the CLI.
func LoadDatabase() (*DatabaseConfig, error) {
	db := loadDatabase()
	if db.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return &db, nil
}

// CacheConfig is what the CLI needs to keep the server's projection cache
// coherent after it writes. An empty RedisURL means no cache is configured.
type CacheConfig struct {
	RedisURL           string
	ProjectionCacheTTL time.Duration
}

// LoadCache reads the Redis URL and projection TTL. Unlike Load, REDIS_URL is
// optional.
func LoadCache() (*CacheConfig, error) {
	c := &CacheConfig{
		RedisURL:           os.Getenv("REDIS_URL"),
		ProjectionCacheTTL: projectionCacheTTL(),
	}
	if c.ProjectionCacheTTL < 0 {
		return nil, fmt.Errorf("PROJECTION_CACHE_TTL must not be negative, got %s", c.ProjectionCacheTTL)
	}
	return c, nil
}

func projectionCacheTTL() time.Duration {
	return envDuration("PROJECTION_CACHE_TTL", 10*time.Minute)
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Reconcile.GenericTechniqueName == "" {
		return fmt.Errorf("GENERIC_TECHNIQUE_NAME must not be empty")
	}
	if c.Reconcile.ProjectionCacheTTL < 0 {
		return fmt.Errorf("PROJECTION_CACHE_TTL must not be negative, got %s", c.Reconcile.ProjectionCacheTTL)
	}

	if c.Server.MaxPayloadBytes <= 0 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be positive, got %d", c.Server.MaxPayloadBytes)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
