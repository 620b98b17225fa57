package db

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/config"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func New(cfg config.PostgresConfig) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")

	if err := applyMigrations(dbPool, cfg); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Postgres{Pool: dbPool}, nil
}

func (p *Postgres) Close() {
	p.Pool.Close()
	log.Info().Msg("Database connection closed")
}

func applyMigrations(dbPool *pgxpool.Pool, postgresCfg config.PostgresConfig) error {
	sqlDB := stdlib.OpenDBFromPool(dbPool)
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database for migrations: %w", err)
	}

	poolCfg := dbPool.Config()
	dsn := fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		poolCfg.ConnConfig.User,
		poolCfg.ConnConfig.Password,
		poolCfg.ConnConfig.Host,
		poolCfg.ConnConfig.Port,
		poolCfg.ConnConfig.Database,
		postgresCfg.SSLMode,
	)

	m, err := migrate.New("file://"+postgresCfg.MigrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migration instance: %w", err)
	}

	err = m.Up()
	if err == migrate.ErrNoChange {
		log.Info().Msg("No new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info().Msg("New migrations applied successfully")

	return nil
}
