// Package database owns the Postgres connection pool and schema migrations.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"
)

// Service wraps the pool with health reporting so the HTTP layer does not
// touch pgx directly.
type Service interface {
	Pool() *pgxpool.Pool
	Health(ctx context.Context) map[string]string
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New connects to DATABASE_URL and applies pending migrations from
// db/migrations before returning.
func New(ctx context.Context) (Service, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &service{pool: pool}, nil
}

// RunMigrations applies the goose migrations through the pgx stdlib adapter.
func RunMigrations(pool *pgxpool.Pool) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.Up(db, migrationsDir()); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func migrationsDir() string {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return "./db/migrations"
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	report := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		report["status"] = "down"
		report["error"] = err.Error()
		return report
	}

	stats := s.pool.Stat()
	report["status"] = "up"
	report["total_conns"] = strconv.Itoa(int(stats.TotalConns()))
	report["idle_conns"] = strconv.Itoa(int(stats.IdleConns()))
	report["acquired_conns"] = strconv.Itoa(int(stats.AcquiredConns()))
	return report
}

func (s *service) Close() {
	s.pool.Close()
}
