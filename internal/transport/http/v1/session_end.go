package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"chatlytics/internal/domain"
)

type sessionEndRequest struct {
	UserID          string  `json:"user_id"`
	SessionID       string  `json:"session_id"`
	TotalMessages   int     `json:"total_messages"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SessionEnd records a session close reported by the browser, typically a
// sendBeacon fired on page unload when the websocket teardown cannot be
// trusted to run. Recording the same session twice is harmless: completion
// updates are guarded on the active status.
// POST /analytics/session_end
func (h *Handler) SessionEnd(c echo.Context) error {
	var req sessionEndRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id and session_id are required"})
	}

	out := h.recorder.Record(c.Request().Context(), domain.Event{
		Kind:      domain.EventSessionEnd,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Time:      time.Now().UTC(),
		Payload: domain.SessionEndPayload{
			TotalMessages:   req.TotalMessages,
			DurationSeconds: req.DurationSeconds,
		},
	})
	if !out.Recorded() {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "session end not recorded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "recorded"})
}
