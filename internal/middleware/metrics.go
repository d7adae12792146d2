package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"movie-discovery-recommender/internal/metrics"
)

// Metrics records request count and latency by route pattern.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		metrics.RecordRequest(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
