package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"movie-discovery-recommender/internal/middleware"
	"movie-discovery-recommender/internal/models"
	"movie-discovery-recommender/internal/service"
)

type RecommendationHandler struct {
	svc *service.RecommendationService
}

func NewRecommendationHandler(svc *service.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{svc: svc}
}

// Health godoc
// GET /health
func (h *RecommendationHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "recommender",
	})
}

// Options godoc
// GET /api/v1/preferences/options
func (h *RecommendationHandler) Options(c fiber.Ctx) error {
	return c.JSON(h.svc.Options())
}

// Recommend godoc
// POST /api/v1/recommendations
//
// The body is the raw preference form; every field is checked by the
// validator, so it is decoded into a loose map rather than a struct.
func (h *RecommendationHandler) Recommend(c fiber.Ctx) error {
	var raw models.RawPreferences
	if err := json.Unmarshal(c.Body(), &raw); err != nil || raw == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	session, err := h.svc.Recommend(c.Context(), middleware.UserID(c), raw)
	if err != nil {
		return respondError(c, err, "generate recommendations")
	}
	return c.JSON(session)
}
