package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"movie-discovery-recommender/internal/middleware"
	"movie-discovery-recommender/internal/models"
	"movie-discovery-recommender/internal/service"
)

const defaultHeartbeat = 25 * time.Second

type HistoryHandler struct {
	svc       *service.RecommendationService
	done      <-chan struct{}
	heartbeat time.Duration
}

// NewHistoryHandler creates the handler. Open streams end when done is
// closed, which lets the server shut down.
func NewHistoryHandler(svc *service.RecommendationService, done <-chan struct{}) *HistoryHandler {
	return &HistoryHandler{svc: svc, done: done, heartbeat: defaultHeartbeat}
}

type SaveRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type HistoryResponse struct {
	Recommendations []models.Recommendation `json:"recommendations"`
}

// Save godoc
// POST /api/v1/history
func (h *HistoryHandler) Save(c fiber.Ctx) error {
	var req SaveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id is required"})
	}

	rec, err := h.svc.Save(c.Context(), middleware.UserID(c), req.SessionID)
	if err != nil {
		return respondError(c, err, "save recommendation")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// List godoc
// GET /api/v1/history
func (h *HistoryHandler) List(c fiber.Ctx) error {
	recs, err := h.svc.History(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "load history")
	}
	return c.JSON(HistoryResponse{Recommendations: recs})
}

// Delete godoc
// DELETE /api/v1/history/:id
func (h *HistoryHandler) Delete(c fiber.Ctx) error {
	if err := h.svc.Delete(c.Context(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, err, "delete recommendation")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stream godoc
// GET /api/v1/history/stream
//
// Server-sent events: a "history" event carrying the full newest-first list
// is sent on connect and after every change.
func (h *HistoryHandler) Stream(c fiber.Ctx) error {
	userID := middleware.UserID(c)
	sub, err := h.svc.Subscribe(c.Context(), userID)
	if err != nil {
		return respondError(c, err, "subscribe to history")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		start := time.Now()
		slog.Debug("history stream opened", "user_id", userID)

		// The current list is always ready on subscribe.
		if err := writeHistoryEvent(w, <-sub.Updates()); err != nil {
			return
		}

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case recs, ok := <-sub.Updates():
				if !ok {
					return
				}
				if err := writeHistoryEvent(w, recs); err != nil {
					slog.Debug("history stream closed", "user_id", userID, "duration", time.Since(start), "error", err)
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					slog.Debug("history stream closed", "user_id", userID, "duration", time.Since(start))
					return
				}
			}
		}
	})
}

func writeHistoryEvent(w *bufio.Writer, recs []models.Recommendation) error {
	data, err := json.Marshal(HistoryResponse{Recommendations: recs})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: history\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
