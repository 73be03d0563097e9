package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"chatlytics/internal/domain"
)

// GetAnalytics returns the top-level aggregates with per-user drill-down.
// GET /analytics
func (h *Handler) GetAnalytics(c echo.Context) error {
	report, err := h.store.Overview(c.Request().Context())
	if err != nil {
		return h.serverError(c, "overview report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetSessions returns session activity counters and recent sessions.
// GET /analytics/sessions
func (h *Handler) GetSessions(c echo.Context) error {
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	report, err := h.store.SessionsReport(c.Request().Context(), startOfDay)
	if err != nil {
		return h.serverError(c, "sessions report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetConversations returns conversation status counts and recent
// conversations.
// GET /analytics/conversations
func (h *Handler) GetConversations(c echo.Context) error {
	report, err := h.store.ConversationsReport(c.Request().Context())
	if err != nil {
		return h.serverError(c, "conversations report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetMessages returns message volume by role and recent messages.
// GET /analytics/messages
func (h *Handler) GetMessages(c echo.Context) error {
	report, err := h.store.MessagesReport(c.Request().Context())
	if err != nil {
		return h.serverError(c, "messages report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetUser returns one user's aggregates and session history.
// GET /analytics/user/:user_id
func (h *Handler) GetUser(c echo.Context) error {
	userID := c.Param("user_id")

	report, err := h.store.UserReport(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
		}
		return h.serverError(c, "user report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}
