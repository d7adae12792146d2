// Package history keeps each user's saved recommendations and pushes the
// current list to live subscribers whenever it changes.
package history

import (
	"context"
	"slices"
	"sync"

	"movie-discovery-recommender/internal/models"
)

// Backend persists recommendations. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Insert stores rec. It assigns rec.Seq and may move rec.CreatedAt
	// forward so that it is not older than the user's newest record.
	Insert(ctx context.Context, rec *models.Recommendation) error
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Recommendation, error)
	// Delete removes one record. It returns models.ErrNotFound when the id
	// does not exist and models.ErrForbidden when another user owns it.
	Delete(ctx context.Context, userID, id string) error
}

// MemoryBackend is an in-process Backend for single instance deployments
// and tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	seq    int64
	byUser map[string][]models.Recommendation
	owners map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byUser: make(map[string][]models.Recommendation),
		owners: make(map[string]string),
	}
}

func (b *MemoryBackend) Insert(ctx context.Context, rec *models.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.byUser[rec.UserID]
	if len(list) > 0 && list[0].CreatedAt.After(rec.CreatedAt) {
		rec.CreatedAt = list[0].CreatedAt
	}
	b.seq++
	rec.Seq = b.seq

	b.byUser[rec.UserID] = slices.Insert(list, 0, rec.Clone())
	b.owners[rec.ID] = rec.UserID
	return nil
}

func (b *MemoryBackend) ListByUser(ctx context.Context, userID string) ([]models.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return cloneAll(b.byUser[userID]), nil
}

func (b *MemoryBackend) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	owner, ok := b.owners[id]
	if !ok {
		return models.ErrNotFound
	}
	if owner != userID {
		return models.ErrForbidden
	}

	b.byUser[userID] = slices.DeleteFunc(b.byUser[userID], func(r models.Recommendation) bool {
		return r.ID == id
	})
	if len(b.byUser[userID]) == 0 {
		delete(b.byUser, userID)
	}
	delete(b.owners, id)
	return nil
}

func cloneAll(recs []models.Recommendation) []models.Recommendation {
	out := make([]models.Recommendation, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
