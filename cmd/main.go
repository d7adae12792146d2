package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"movie-discovery-recommender/internal/catalog"
	"movie-discovery-recommender/internal/config"
	"movie-discovery-recommender/internal/database"
	"movie-discovery-recommender/internal/handler"
	"movie-discovery-recommender/internal/history"
	"movie-discovery-recommender/internal/middleware"
	"movie-discovery-recommender/internal/models"
	"movie-discovery-recommender/internal/repository"
	"movie-discovery-recommender/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Connect to PostgreSQL
	var db *sql.DB
	if cfg.NeedsPostgres() {
		db, err = database.NewPostgres(startupCtx, cfg.DB)
		if err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	// Connect to Redis (optional)
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(startupCtx, cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, running without cache", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	provider, err := newCatalog(startupCtx, cfg, db, rdb)
	if err != nil {
		slog.Error("failed to set up catalog", "source", cfg.Catalog.Source, "error", err)
		os.Exit(1)
	}

	// History store
	var backend history.Backend = history.NewMemoryBackend()
	if cfg.StoreBackend == config.StoreBackendPostgres {
		backend = repository.NewRecommendationRepository(db)
	}
	var notifier history.Notifier
	var sessions service.SessionCache = service.NewMemorySessionCache(cfg.SessionTTL)
	if rdb != nil {
		notifier = history.NewRedisNotifier(rdb)
		sessions = service.NewRedisSessionCache(rdb, cfg.SessionTTL)
	}
	store := history.NewStore(backend, notifier, cfg.HistoryResyncInterval)

	go func() {
		if err := store.Run(ctx); err != nil {
			slog.Error("history store stopped", "error", err)
		}
	}()

	// Initialize layers
	svc := service.NewRecommendationService(
		models.DefaultVocabulary, cfg.MaxMovieCount,
		provider, cfg.Catalog.Source, sessions, store,
	)
	tokens := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	routes := handler.Routes{
		Recommendations: handler.NewRecommendationHandler(svc),
		History:         handler.NewHistoryHandler(svc, ctx.Done()),
		Auth:            middleware.Auth(tokens),
	}
	if rdb != nil {
		routes.RateLimit = middleware.NewRateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow).Handler()
	}

	// Load swagger document
	routes.Swagger, err = os.ReadFile("docs/swagger.yaml")
	if err != nil {
		slog.Warn("swagger document not found, swagger UI will be unavailable", "error", err)
	}

	app := handler.NewApp()
	app.Use(logger.New())
	app.Use(cors.New())
	handler.Register(app, routes)

	go func() {
		slog.Info("recommender starting",
			"port", cfg.Port,
			"catalog", cfg.Catalog.Source,
			"store", cfg.StoreBackend,
			"redis", rdb != nil,
		)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down recommender")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newCatalog(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (catalog.Provider, error) {
	switch cfg.Catalog.Source {
	case config.CatalogMovieService:
		return catalog.NewMovieService(catalog.MovieServiceConfig{
			BaseURL:              cfg.Catalog.MovieServiceURL,
			Pages:                cfg.Catalog.Pages,
			CacheTTL:             cfg.Catalog.CacheTTL,
			BreakerFailures:      cfg.Catalog.BreakerFailures,
			BreakerTimeout:       cfg.Catalog.BreakerTimeout,
			MainstreamPopularity: cfg.Catalog.MainstreamPopularity,
		}, rdb), nil
	}

	seed, err := catalog.SeedMovies()
	if err != nil {
		return nil, err
	}

	if cfg.Catalog.Source == config.CatalogPostgres {
		repo := repository.NewMovieRepository(db)
		if err := repo.SeedIfEmpty(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		return repo, nil
	}
	return catalog.NewStatic(seed), nil
}
