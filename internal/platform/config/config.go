package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs at startup so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig controls the database/sql pool.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// RedisConfig controls the optional boundary cache. An empty Addr disables it.
type RedisConfig struct {
	Addr        string
	BoundaryTTL time.Duration
	DialTimeout time.Duration
	ReadTimeout time.Duration
	PingTimeout time.Duration
}

// FromEnv builds a Config from environment variables with safe defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("RECALL_ADDR", ":8080"),
		JWTSigningKey: os.Getenv("RECALL_JWT_SIGNING_KEY"),
		Postgres: PostgresConfig{
			DSN:             os.Getenv("RECALL_POSTGRES_DSN"),
			MaxOpenConns:    envIntOr("RECALL_PG_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOr("RECALL_PG_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: 30 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        os.Getenv("RECALL_REDIS_ADDR"),
			BoundaryTTL: envDurationOr("RECALL_BOUNDARY_CACHE_TTL", 30*time.Second),
			DialTimeout: 3 * time.Second,
			ReadTimeout: 2 * time.Second,
			PingTimeout: 2 * time.Second,
		},
	}

	if cfg.Postgres.DSN == "" {
		return Config{}, fmt.Errorf("RECALL_POSTGRES_DSN is required")
	}
	if cfg.JWTSigningKey == "" {
		// Development fallback; deployments must override.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
