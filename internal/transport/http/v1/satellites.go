package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"chatlytics/internal/domain"
)

const defaultListLimit = 100

func listLimit(c echo.Context) int {
	limit := defaultListLimit
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	return limit
}

type createLeadRequest struct {
	LeadType string `json:"lead_type"`
	Name     string `json:"name"`
}

// CreateLead stores a captured lead.
// POST /analytics/leads
func (h *Handler) CreateLead(c echo.Context) error {
	var req createLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	now := time.Now().UTC()
	lead := &domain.Lead{
		LeadID:    uuid.New().String(),
		LeadType:  req.LeadType,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateLead(c.Request().Context(), lead); err != nil {
		return h.serverError(c, "lead creation failed", err)
	}
	return c.JSON(http.StatusCreated, lead)
}

// ListLeads returns stored leads, newest first.
// GET /analytics/leads
func (h *Handler) ListLeads(c echo.Context) error {
	ctx := c.Request().Context()

	leads, err := h.store.ListLeads(ctx, listLimit(c))
	if err != nil {
		return h.serverError(c, "lead listing failed", err)
	}
	total, err := h.store.CountLeads(ctx)
	if err != nil {
		return h.serverError(c, "lead count failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total": total,
		"leads": leads,
	})
}

type createHandoverRequest struct {
	UserID        string   `json:"user_id"`
	SessionID     string   `json:"session_id"`
	Issues        []string `json:"issues"`
	OtherText     string   `json:"other_text"`
	SupportOption string   `json:"support_option"`
	LastMessage   string   `json:"last_message"`
}

// CreateHandover records a request to escalate a session to a human agent.
// POST /analytics/human_handover
func (h *Handler) CreateHandover(c echo.Context) error {
	var req createHandoverRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id and session_id are required"})
	}

	handover := &domain.HandoverRequest{
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		RequestedAt:   time.Now().UTC(),
		Issues:        req.Issues,
		OtherText:     req.OtherText,
		SupportOption: req.SupportOption,
		LastMessage:   req.LastMessage,
		Status:        domain.HandoverStatusPending,
	}
	id, err := h.store.CreateHandover(c.Request().Context(), handover)
	if err != nil {
		return h.serverError(c, "handover creation failed", err)
	}
	handover.HandoverID = id
	return c.JSON(http.StatusCreated, handover)
}

// ListHandovers returns handover requests, newest first.
// GET /analytics/human_handover
func (h *Handler) ListHandovers(c echo.Context) error {
	ctx := c.Request().Context()

	handovers, err := h.store.ListHandovers(ctx, listLimit(c))
	if err != nil {
		return h.serverError(c, "handover listing failed", err)
	}
	total, err := h.store.CountHandovers(ctx)
	if err != nil {
		return h.serverError(c, "handover count failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total":     total,
		"handovers": handovers,
	})
}

// ResolveHandover marks a pending handover as resolved.
// POST /analytics/human_handover/:handover_id/resolve
func (h *Handler) ResolveHandover(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("handover_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid handover id"})
	}

	if err := h.store.ResolveHandover(c.Request().Context(), id); err != nil {
		return h.serverError(c, "handover resolution failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"handover_id": id,
		"status":      domain.HandoverStatusResolved,
	})
}

type closeEventRequest struct {
	UserID           string  `json:"user_id"`
	SessionID        string  `json:"session_id"`
	TimeSpentSeconds float64 `json:"time_spent_seconds"`
	LastUserMessage  string  `json:"last_user_message"`
	LastBotMessage   string  `json:"last_bot_message"`
}

// CreateCloseEvent records the user dismissing the chat widget.
// POST /analytics/chatbot_close
func (h *Handler) CreateCloseEvent(c echo.Context) error {
	var req closeEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id and session_id are required"})
	}

	event := &domain.CloseEvent{
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		ClosedAt:         time.Now().UTC(),
		TimeSpentSeconds: req.TimeSpentSeconds,
		LastUserMessage:  req.LastUserMessage,
		LastBotMessage:   req.LastBotMessage,
	}
	if err := h.store.CreateCloseEvent(c.Request().Context(), event); err != nil {
		return h.serverError(c, "close event recording failed", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "recorded"})
}
