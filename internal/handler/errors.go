package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"movie-discovery-recommender/internal/models"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error     string             `json:"error"`
	Fields    models.FieldErrors `json:"fields,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
}

// ErrorHandler renders errors that escape a handler, e.g. from the binder.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// respondError maps a domain error to a status code. action names what failed
// in log lines and 5xx responses.
func respondError(c fiber.Ctx, err error, action string) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:  "invalid preferences",
			Fields: verr.Fields,
		})
	}

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, models.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Error: "recommendation belongs to another user"})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not found"})
	case errors.Is(err, models.ErrCatalogUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:     "movie catalog is unavailable, try again shortly",
			Retryable: true,
		})
	case models.IsRetryable(err):
		slog.Warn("transient failure", "action", action, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:     "failed to " + action + ", try again",
			Retryable: true,
		})
	}

	slog.Error("request failed", "action", action, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to " + action})
}
