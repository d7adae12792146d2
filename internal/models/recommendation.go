package models

import (
	"slices"
	"time"
)

// Movie is a read-only catalog record.
type Movie struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Director   string   `json:"director"`
	Genres     []string `json:"genres"`
	Rating     float64  `json:"rating"`
	Duration   int      `json:"duration"`
	Language   string   `json:"language"`
	Country    string   `json:"country"`
	Synopsis   string   `json:"synopsis"`
	Poster     string   `json:"poster"`
	Popularity string   `json:"popularity"`
}

// CloneMovies deep-copies a movie list.
func CloneMovies(movies []Movie) []Movie {
	if movies == nil {
		return nil
	}
	out := make([]Movie, len(movies))
	for i, m := range movies {
		m.Genres = slices.Clone(m.Genres)
		out[i] = m
	}
	return out
}

// Session binds validated criteria to the movies they produced.
// It is the only thing that can be saved to history.
type Session struct {
	ID        string             `json:"session_id"`
	UserID    string             `json:"-"`
	Criteria  PreferenceCriteria `json:"criteria"`
	Movies    []Movie            `json:"movies"`
	CreatedAt time.Time          `json:"created_at"`
}

// Recommendation is a persisted history entry owned by one user.
type Recommendation struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Criteria  PreferenceCriteria `json:"criteria"`
	Movies    []Movie            `json:"movies"`
	CreatedAt time.Time          `json:"created_at"`

	// Seq is the store's insertion counter, used to break CreatedAt ties.
	Seq int64 `json:"-"`
}

// Clone returns a deep copy of r.
func (r Recommendation) Clone() Recommendation {
	r.Criteria = r.Criteria.Clone()
	r.Movies = CloneMovies(r.Movies)
	return r
}

// NewerThan orders records newest first, latest insert first on equal timestamps.
func (r Recommendation) NewerThan(o Recommendation) bool {
	if !r.CreatedAt.Equal(o.CreatedAt) {
		return r.CreatedAt.After(o.CreatedAt)
	}
	return r.Seq > o.Seq
}
