package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"movie-discovery-recommender/internal/models"
)

// RecommendationRepository stores saved recommendations in PostgreSQL.
type RecommendationRepository struct {
	db *sql.DB
}

func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Insert writes rec inside a transaction holding a per-user advisory lock, so
// concurrent writers from other instances cannot interleave timestamps.
// created_at never goes below the user's newest record.
func (r *RecommendationRepository) Insert(ctx context.Context, rec *models.Recommendation) error {
	criteria, err := json.Marshal(rec.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	movies, err := json.Marshal(rec.Movies)
	if err != nil {
		return fmt.Errorf("encode movies: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.UserID); err != nil {
		return fmt.Errorf("lock user history: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO recommendations (id, user_id, criteria, movies, created_at)
		VALUES ($1, $2, $3, $4, GREATEST(
			$5::timestamptz,
			(SELECT MAX(created_at) FROM recommendations WHERE user_id = $2)
		))
		RETURNING seq, created_at
	`, rec.ID, rec.UserID, criteria, movies, rec.CreatedAt).Scan(&rec.Seq, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recommendation: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return nil
}

// ListByUser returns the user's recommendations, newest first.
func (r *RecommendationRepository) ListByUser(ctx context.Context, userID string) ([]models.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, criteria, movies, created_at, seq
		FROM recommendations
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []models.Recommendation{}
	for rows.Next() {
		var (
			rec      models.Recommendation
			criteria []byte
			movies   []byte
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &criteria, &movies, &rec.CreatedAt, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if err := json.Unmarshal(criteria, &rec.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(movies, &rec.Movies); err != nil {
			return nil, fmt.Errorf("decode movies of %s: %w", rec.ID, err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes a recommendation owned by userID. It returns
// models.ErrNotFound for unknown ids and models.ErrForbidden when the record
// belongs to someone else.
func (r *RecommendationRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM recommendations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recommendation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var owner string
	err = r.db.QueryRowContext(ctx, `SELECT user_id FROM recommendations WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check recommendation owner: %w", err)
	}
	return models.ErrForbidden
}
