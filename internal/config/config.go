package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
}

// NewConfig собирает конфигурацию из переменных окружения.
// .env подхватывается, если он есть рядом с бинарником (локальная разработка).
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	var err error
	cfg.Postgres.Host, err = requireEnv("DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User, err = requireEnv("DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.Postgres.Password, err = requireEnv("DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.Postgres.DBName, err = requireEnv("DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	maxConns, err := getEnvInt32("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConns = maxConns

	minConns, err := getEnvInt32("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MinConns = minConns

	lifetimeMin, err := getEnvInt32("DB_MAX_CONN_LIFETIME_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConnLifetime = time.Duration(lifetimeMin) * time.Minute

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

func getEnvInt32(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return int32(parsed), nil
}
