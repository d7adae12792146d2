package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"movie-discovery-recommender/internal/metrics"
	"movie-discovery-recommender/internal/models"
)

const movieServiceCacheKey = "catalog:movie-service"

// MovieServiceConfig configures the movie-service backed catalog.
type MovieServiceConfig struct {
	BaseURL         string
	Pages           int
	CacheTTL        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// MainstreamPopularity is the movie-service popularity score at and
	// above which a film counts as a mainstream hit.
	MainstreamPopularity float64
}

// MovieService reads the catalog from the movie-service REST API.
type MovieService struct {
	cfg        MovieServiceConfig
	baseURL    string
	httpClient *http.Client
	rdb        *redis.Client
	breaker    *gobreaker.CircuitBreaker[[]models.Movie]
}

// NewMovieService creates the provider. rdb may be nil, in which case every
// call goes to the movie service.
func NewMovieService(cfg MovieServiceConfig, rdb *redis.Client) *MovieService {
	if cfg.Pages < 1 {
		cfg.Pages = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	s := &MovieService{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rdb:        rdb,
	}
	s.breaker = gobreaker.NewCircuitBreaker[[]models.Movie](gobreaker.Settings{
		Name:    "movie-service-catalog",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("catalog circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return s
}

// Movies returns the cached snapshot or fetches a fresh one.
func (s *MovieService) Movies(ctx context.Context) ([]models.Movie, error) {
	if movies, ok := s.fromCache(ctx); ok {
		return movies, nil
	}

	movies, err := s.breaker.Execute(func() ([]models.Movie, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("movie-service catalog: %w", err)
	}

	s.toCache(ctx, movies)
	return models.CloneMovies(movies), nil
}

type movieListItem struct {
	ID int `json:"id"`
}

type movieListResponse struct {
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Data       []movieListItem `json:"data"`
}

type movieDetail struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	ReleaseDate string   `json:"release_date"`
	Genres      []string `json:"genres"`
	Language    string   `json:"language"`
	Duration    int      `json:"duration"`
	Popularity  float64  `json:"popularity"`
	PosterURL   string   `json:"poster_url"`
	// Not served by every movie-service version.
	Country     string   `json:"country"`
	VoteAverage float64  `json:"vote_average"`
}

func (s *MovieService) fetch(ctx context.Context) ([]models.Movie, error) {
	var movies []models.Movie
	listed := 0

	for page := 1; page <= s.cfg.Pages; page++ {
		url := fmt.Sprintf("%s/api/v1/movies?page=%d&page_size=20&sort_by=popularity&order=desc", s.baseURL, page)

		var list movieListResponse
		if err := s.getJSON(ctx, url, &list); err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}

		for _, item := range list.Data {
			var detail movieDetail
			err := s.getJSON(ctx, fmt.Sprintf("%s/api/v1/movies/%d", s.baseURL, item.ID), &detail)
			if isNotFound(err) {
				// Removed between the list and the detail call.
				slog.Warn("movie detail not found, skipping", "movie_id", item.ID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("movie %d: %w", item.ID, err)
			}
			movies = append(movies, s.toMovie(detail))
		}
		listed += len(list.Data)

		if page >= list.TotalPages {
			break
		}
	}

	if listed > 0 && len(movies) == 0 {
		return nil, fmt.Errorf("none of %d listed movies could be loaded", listed)
	}
	return movies, nil
}

// statusError is a non-200 answer from the movie service.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("movie-service returned %d: %s", e.Code, e.Body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

func (s *MovieService) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to movie-service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *MovieService) toMovie(d movieDetail) models.Movie {
	year := releaseYear(d.ReleaseDate)
	genres := d.Genres
	if genres == nil {
		genres = []string{}
	}
	return models.Movie{
		ID:         d.ID,
		Title:      d.Title,
		Year:       year,
		Genres:     genres,
		Duration:   d.Duration,
		Language:   d.Language,
		Country:    d.Country,
		Rating:     d.VoteAverage,
		Synopsis:   d.Overview,
		Poster:     d.PosterURL,
		Popularity: s.popularityTier(d.Popularity, year),
	}
}

// popularityTier buckets the movie-service score: popular films are
// mainstream, overlooked pre-2000 films are cult, the rest hidden gems.
func (s *MovieService) popularityTier(score float64, year int) string {
	switch {
	case score >= s.cfg.MainstreamPopularity:
		return "mainstream"
	case year > 0 && year < 2000:
		return "cult"
	default:
		return "hidden"
	}
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func (s *MovieService) fromCache(ctx context.Context) ([]models.Movie, bool) {
	if s.rdb == nil {
		return nil, false
	}
	cached, err := s.rdb.Get(ctx, movieServiceCacheKey).Result()
	if err != nil {
		metrics.CacheMisses.WithLabelValues("catalog").Inc()
		return nil, false
	}
	var movies []models.Movie
	if json.Unmarshal([]byte(cached), &movies) != nil {
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("catalog").Inc()
	slog.Debug("catalog cache hit", "key", movieServiceCacheKey, "movies", len(movies))
	return movies, true
}

func (s *MovieService) toCache(ctx context.Context, movies []models.Movie) {
	if s.rdb == nil || s.cfg.CacheTTL <= 0 || len(movies) == 0 {
		return
	}
	data, err := json.Marshal(movies)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, movieServiceCacheKey, data, s.cfg.CacheTTL).Err(); err != nil {
		slog.Error("failed to cache catalog", "key", movieServiceCacheKey, "error", err)
	}
}
