package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-discovery-recommender/internal/catalog"
	"movie-discovery-recommender/internal/database/testhelper"
	"movie-discovery-recommender/internal/models"
)

func newRecommendation(userID string, at time.Time) *models.Recommendation {
	return &models.Recommendation{
		ID:     uuid.NewString(),
		UserID: userID,
		Criteria: models.PreferenceCriteria{
			MoodMode:        models.MoodDescribed,
			Mood:            "rainy sunday",
			FreeTimeMinutes: 150,
			Language:        "en",
			Country:         models.Any,
			Era:             "1990s",
			Popularity:      models.Any,
			Genres:          []string{"Mystery", "Drama"},
			RequestedCount:  2,
		},
		Movies: []models.Movie{
			{ID: 12, Title: "Heat", Year: 1995, Genres: []string{"Crime", "Drama"}, Rating: 8.3, Duration: 170},
			{ID: 4, Title: "Se7en", Year: 1995, Genres: []string{"Mystery"}, Rating: 8.6, Duration: 127},
		},
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}
}

func TestRecommendationRepository_RoundTrip(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	rec := newRecommendation(user, time.Now())
	want := rec.Clone()
	require.NoError(t, repo.Insert(ctx, rec))
	assert.NotZero(t, rec.Seq)

	got, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, want.Criteria, got[0].Criteria)
	assert.Equal(t, want.Movies, got[0].Movies)
	assert.True(t, want.CreatedAt.Equal(got[0].CreatedAt))
}

func TestRecommendationRepository_LongUserID(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()
	user := "oidc|" + strings.Repeat("x", 300) + uuid.NewString()

	require.NoError(t, repo.Insert(ctx, newRecommendation(user, time.Now())))

	got, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, user, got[0].UserID)
}

func TestRecommendationRepository_Ordering(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()
	user := "user-" + uuid.NewString()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	a := newRecommendation(user, at)
	b := newRecommendation(user, at)
	c := newRecommendation(user, at.Add(-time.Hour))
	for _, r := range []*models.Recommendation{a, b, c} {
		require.NoError(t, repo.Insert(ctx, r))
	}
	assert.True(t, c.CreatedAt.Equal(at), "timestamps never go backwards")

	got, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRecommendationRepository_ConcurrentInserts(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Insert(ctx, newRecommendation(user, time.Now())); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].NewerThan(got[i]))
	}
}

func TestRecommendationRepository_Delete(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()
	owner := "user-" + uuid.NewString()
	other := "user-" + uuid.NewString()

	rec := newRecommendation(owner, time.Now())
	require.NoError(t, repo.Insert(ctx, rec))

	assert.ErrorIs(t, repo.Delete(ctx, other, rec.ID), models.ErrForbidden)
	assert.ErrorIs(t, repo.Delete(ctx, owner, uuid.NewString()), models.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, owner, "garbage"), models.ErrNotFound)

	got, err := repo.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, repo.Delete(ctx, owner, rec.ID))
	got, err = repo.ListByUser(ctx, owner)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMovieRepository_SeedAndRead(t *testing.T) {
	db := testhelper.SetupTestDB(t)
	repo := NewMovieRepository(db)
	ctx := context.Background()

	seed, err := catalog.SeedMovies()
	require.NoError(t, err)

	require.NoError(t, repo.SeedIfEmpty(ctx, seed))
	require.NoError(t, repo.SeedIfEmpty(ctx, seed[:1]))

	got, err := repo.Movies(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(seed))

	byID := map[int]models.Movie{}
	for _, m := range got {
		byID[m.ID] = m
	}
	for _, m := range seed {
		assert.Equal(t, m, byID[m.ID])
	}
}
