// Package v1 provides the public HTTP API of the conversation service.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/scenarios", h.ListScenarios)

	// Sessions
	e.POST("/v1/sessions", h.StartSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.DELETE("/v1/sessions/:session_id", h.EndSession)
	e.POST("/v1/sessions/:session_id/turns", h.SubmitTurn)
	e.GET("/v1/sessions/:session_id/greeting", h.GetGreeting)
	e.POST("/v1/sessions/:session_id/greeting/render", h.RenderGreeting)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
	e.PUT("/v1/sessions/:session_id/mock", h.SetSessionMock)
	e.GET("/v1/sessions/:session_id/renders", h.ListSessionRenders)

	// Providers
	e.GET("/v1/providers", h.ListProviders)
	e.GET("/v1/providers/active", h.GetActiveProvider)
	e.PUT("/v1/providers/active", h.SetActiveProvider)

	// Rendering
	e.POST("/v1/renders", h.CreateRender)
	e.GET("/v1/renders/:job_id", h.GetRender)

	e.POST("/v1/mock-chat", h.MockChat)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"version":  "0.1.0",
		"provider": h.service.ProviderStatus().Active.ID,
		"sessions": h.service.SessionCount(),
	})
}

// errorStatus maps service errors onto HTTP status codes and the message
// shown to the client.
func errorStatus(err error) (int, string) {
	var (
		timeoutErr *domain.RenderTimeoutError
		failedErr  *domain.RenderFailedError
		submitErr  *domain.RenderSubmitError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case service.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "video generation timed out"
	case errors.As(err, &failedErr), errors.As(err, &submitErr):
		return http.StatusBadGateway, "video generation failed: " + err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(c echo.Context, err error) error {
	status, msg := errorStatus(err)
	return c.JSON(status, map[string]string{"error": msg})
}
