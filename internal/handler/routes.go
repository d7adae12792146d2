package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movie-discovery-recommender/internal/middleware"
	"movie-discovery-recommender/internal/validation"
)

// Routes collects what Register wires onto the app.
type Routes struct {
	Recommendations *RecommendationHandler
	History         *HistoryHandler
	Auth            fiber.Handler
	// RateLimit may be nil when Redis is not configured.
	RateLimit fiber.Handler
	Swagger   []byte
}

// NewApp creates the fiber app with the shared error handler and body
// validator.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:         "recommender",
		ServerHeader:    "recommender",
		ErrorHandler:    ErrorHandler,
		StructValidator: validation.StructValidator{},
	})
	app.Use(recover.New())
	app.Use(middleware.Metrics())
	return app
}

func Register(app *fiber.App, r Routes) {
	if r.Swagger != nil {
		RegisterSwagger(app, r.Swagger)
	}

	app.Get("/health", r.Recommendations.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	limit := r.RateLimit
	if limit == nil {
		limit = func(c fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v1")
	api.Get("/preferences/options", r.Recommendations.Options)
	api.Post("/recommendations", r.Auth, limit, r.Recommendations.Recommend)

	api.Post("/history", r.Auth, limit, r.History.Save)
	api.Get("/history", r.Auth, limit, r.History.List)
	api.Get("/history/stream", r.Auth, r.History.Stream)
	api.Delete("/history/:id", r.Auth, limit, r.History.Delete)
}
