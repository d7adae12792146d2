package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"movie-discovery-recommender/internal/models"
)

// MovieRepository serves the catalog from the catalog_movies table.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Movies returns the whole catalog ordered by id.
func (r *MovieRepository) Movies(ctx context.Context) ([]models.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, year, director, genres, rating, duration,
		       language, country, synopsis, poster, popularity
		FROM catalog_movies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	movies := []models.Movie{}
	for rows.Next() {
		var (
			m      models.Movie
			genres pq.StringArray
		)
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Year, &m.Director, &genres, &m.Rating, &m.Duration,
			&m.Language, &m.Country, &m.Synopsis, &m.Poster, &m.Popularity,
		); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		m.Genres = []string(genres)
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// Upsert inserts or replaces catalog rows in one transaction.
func (r *MovieRepository) Upsert(ctx context.Context, movies []models.Movie) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_movies (id, title, year, director, genres, rating, duration,
		                            language, country, synopsis, poster, popularity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, year = EXCLUDED.year, director = EXCLUDED.director,
			genres = EXCLUDED.genres, rating = EXCLUDED.rating, duration = EXCLUDED.duration,
			language = EXCLUDED.language, country = EXCLUDED.country,
			synopsis = EXCLUDED.synopsis, poster = EXCLUDED.poster, popularity = EXCLUDED.popularity
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range movies {
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.Title, m.Year, m.Director, pq.StringArray(m.Genres), m.Rating, m.Duration,
			m.Language, m.Country, m.Synopsis, m.Poster, m.Popularity,
		); err != nil {
			return fmt.Errorf("upsert movie %d: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// SeedIfEmpty loads movies into an empty catalog table.
func (r *MovieRepository) SeedIfEmpty(ctx context.Context, movies []models.Movie) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_movies`).Scan(&count); err != nil {
		return fmt.Errorf("count catalog: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := r.Upsert(ctx, movies); err != nil {
		return err
	}
	slog.Info("seeded catalog", "movies", len(movies))
	return nil
}
