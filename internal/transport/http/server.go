// Package http assembles the echo server for the analytics API and the
// websocket chat endpoint.
package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chatlytics/internal/analytics"
	"chatlytics/internal/chat"
	"chatlytics/internal/store"
	v1 "chatlytics/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. The chat server is
// optional so the API can run read-only.
func NewServer(st store.Store, rec *analytics.Recorder, chatServer *chat.Server, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(st, rec, log)
	v1Handler.RegisterRoutes(e)
	if chatServer != nil {
		chatServer.RegisterRoutes(e)
	}

	return e
}
