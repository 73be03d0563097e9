// Package v1 provides the read-side analytics HTTP API.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatlytics/internal/analytics"
	"chatlytics/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	recorder *analytics.Recorder
	log      *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, rec *analytics.Recorder, log *slog.Logger) *Handler {
	return &Handler{store: st, recorder: rec, log: log}
}

// RegisterRoutes registers the analytics routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Reporting projections
	e.GET("/analytics", h.GetAnalytics)
	e.GET("/analytics/sessions", h.GetSessions)
	e.GET("/analytics/conversations", h.GetConversations)
	e.GET("/analytics/messages", h.GetMessages)
	e.GET("/analytics/user/:user_id", h.GetUser)

	// Browser-beacon session close
	e.POST("/analytics/session_end", h.SessionEnd)

	// Satellite records
	e.POST("/analytics/leads", h.CreateLead)
	e.GET("/analytics/leads", h.ListLeads)
	e.POST("/analytics/human_handover", h.CreateHandover)
	e.GET("/analytics/human_handover", h.ListHandovers)
	e.POST("/analytics/human_handover/:handover_id/resolve", h.ResolveHandover)
	e.POST("/analytics/chatbot_close", h.CreateCloseEvent)

	e.GET("/", h.Health)
}

// Health returns health status.
// GET /
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chatlytics",
	})
}

func (h *Handler) serverError(c echo.Context, what string, err error) error {
	h.log.Error(what, "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
