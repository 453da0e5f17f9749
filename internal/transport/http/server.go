// Package http provides the HTTP servers of the conversation service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gezhip02/chat-english/internal/service"
	"github.com/gezhip02/chat-english/internal/transport/http/internalapi"
	"github.com/gezhip02/chat-english/internal/transport/http/llmproxy"
	v1 "github.com/gezhip02/chat-english/internal/transport/http/v1"
	"github.com/gezhip02/chat-english/internal/transport/ws"
)

// NewExternalServer creates and configures the learner-facing HTTP server.
// It serves the session API, the OpenAI-compatible proxy and, when wsServer
// is non-nil, the websocket channel at /ws.
func NewExternalServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	llmHandler := llmproxy.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	llmHandler.RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}

	return e
}

// NewInternalServer creates and configures the operator-facing HTTP server.
func NewInternalServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	internalHandler := internalapi.NewHandler(svc)

	// Register Routes
	internalHandler.RegisterRoutes(e)

	return e
}
