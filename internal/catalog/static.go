// Package catalog supplies the movies that preferences are matched against.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"movie-discovery-recommender/internal/models"
)

// Provider returns a snapshot of the catalog for one match.
type Provider interface {
	Movies(ctx context.Context) ([]models.Movie, error)
}

//go:embed seed_movies.json
var seedJSON []byte

// SeedMovies decodes the catalog bundled with the binary.
func SeedMovies() ([]models.Movie, error) {
	var movies []models.Movie
	if err := json.Unmarshal(seedJSON, &movies); err != nil {
		return nil, fmt.Errorf("decode seed catalog: %w", err)
	}
	return movies, nil
}

// Static serves a fixed in-memory catalog.
type Static struct {
	movies []models.Movie
}

// NewStatic wraps movies; the slice is copied.
func NewStatic(movies []models.Movie) *Static {
	return &Static{movies: models.CloneMovies(movies)}
}

// Movies returns a copy of the catalog so callers cannot mutate it.
func (s *Static) Movies(context.Context) ([]models.Movie, error) {
	return models.CloneMovies(s.movies), nil
}
