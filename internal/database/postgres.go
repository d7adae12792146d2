package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"movie-discovery-recommender/internal/config"
)

func NewPostgres(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS recommendations (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			criteria JSONB NOT NULL,
			movies JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE recommendations ALTER COLUMN user_id TYPE TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user_created
			ON recommendations(user_id, created_at DESC, seq DESC)`,
		`CREATE TABLE IF NOT EXISTS catalog_movies (
			id INTEGER PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			director VARCHAR(255) NOT NULL DEFAULT '',
			genres TEXT[] NOT NULL DEFAULT '{}',
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration INTEGER NOT NULL DEFAULT 0,
			language VARCHAR(50) NOT NULL DEFAULT '',
			country VARCHAR(100) NOT NULL DEFAULT '',
			synopsis TEXT NOT NULL DEFAULT '',
			poster TEXT NOT NULL DEFAULT '',
			popularity VARCHAR(20) NOT NULL DEFAULT 'hidden'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_movies_genres ON catalog_movies USING GIN(genres)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
