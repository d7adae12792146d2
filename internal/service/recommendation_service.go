package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"movie-discovery-recommender/internal/history"
	"movie-discovery-recommender/internal/metrics"
	"movie-discovery-recommender/internal/models"
)

// historyStore is the part of history.Store the service needs.
type historyStore interface {
	Append(ctx context.Context, userID string, criteria models.PreferenceCriteria, movies []models.Movie) (models.Recommendation, error)
	List(ctx context.Context, userID string) ([]models.Recommendation, error)
	Delete(ctx context.Context, userID, id string) error
	Subscribe(ctx context.Context, userID string) (*history.Subscription, error)
}

// Options is everything the preference form needs to render.
type Options struct {
	models.Vocabulary
	MoodModes     []string `json:"mood_modes"`
	MaxMovieCount int      `json:"max_movie_count"`
}

type RecommendationService struct {
	validator     *PreferenceValidator
	matcher       *Matcher
	catalog       catalogProvider
	catalogSource string
	sessions      SessionCache
	history       historyStore
	vocab         models.Vocabulary
}

func NewRecommendationService(
	vocab models.Vocabulary,
	maxMovieCount int,
	catalog catalogProvider,
	catalogSource string,
	sessions SessionCache,
	history historyStore,
) *RecommendationService {
	return &RecommendationService{
		validator:     NewPreferenceValidator(vocab, maxMovieCount),
		matcher:       NewMatcher(vocab),
		catalog:       catalog,
		catalogSource: catalogSource,
		sessions:      sessions,
		history:       history,
		vocab:         vocab,
	}
}

// Options returns the closed vocabularies offered by the form.
func (s *RecommendationService) Options() Options {
	return Options{
		Vocabulary:    s.vocab,
		MoodModes:     []string{string(models.MoodChosen), string(models.MoodDescribed)},
		MaxMovieCount: s.validator.MaxCount(),
	}
}

// Recommend validates raw, matches it against the catalog and keeps the
// result as a session the user can save later.
func (s *RecommendationService) Recommend(ctx context.Context, userID string, raw models.RawPreferences) (*models.Session, error) {
	criteria, err := s.validator.Validate(raw)
	if err != nil {
		metrics.RecommendationsServed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	movies, err := s.matcher.Match(ctx, criteria, s.catalog)
	metrics.CatalogFetchDuration.WithLabelValues(s.catalogSource).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecommendationsServed.WithLabelValues("unavailable").Inc()
		slog.Error("catalog unavailable", "source", s.catalogSource, "error", err)
		return nil, err
	}

	outcome := "ok"
	if len(movies) == 0 {
		outcome = "empty"
	}
	metrics.RecommendationsServed.WithLabelValues(outcome).Inc()
	metrics.RecommendationSize.Observe(float64(len(movies)))

	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Criteria:  criteria,
		Movies:    movies,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("keep session: %w", err)
	}

	slog.Info("recommendation generated",
		"user_id", userID,
		"session_id", session.ID,
		"genres", criteria.Genres,
		"movies", len(movies),
	)
	return &session, nil
}

// Save appends a session to the user's history. The session is dropped only
// once the append has succeeded, so a failed save can be retried.
func (s *RecommendationService) Save(ctx context.Context, userID, sessionID string) (*models.Recommendation, error) {
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	rec, err := s.history.Append(ctx, userID, session.Criteria, session.Movies)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Drop(ctx, userID, sessionID); err != nil {
		slog.Warn("failed to drop saved session", "session_id", sessionID, "error", err)
	}
	return &rec, nil
}

func (s *RecommendationService) History(ctx context.Context, userID string) ([]models.Recommendation, error) {
	return s.history.List(ctx, userID)
}

func (s *RecommendationService) Delete(ctx context.Context, userID, id string) error {
	return s.history.Delete(ctx, userID, id)
}

func (s *RecommendationService) Subscribe(ctx context.Context, userID string) (*history.Subscription, error) {
	return s.history.Subscribe(ctx, userID)
}
