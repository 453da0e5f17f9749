// Package llmproxy exposes the provider registry behind an OpenAI-compatible
// chat completions API.
package llmproxy

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/service"
)

// Handler handles LLM proxy HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new LLM proxy handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers LLM proxy routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat/completions", h.ChatCompletions)
	e.GET("/v1/models", h.ListModels)
}

func invalidRequest(c echo.Context, msg, param string) error {
	return c.JSON(http.StatusBadRequest, llm.ErrorResponse{
		Error: &llm.APIError{
			Message: msg,
			Type:    "invalid_request_error",
			Param:   param,
		},
	})
}

// ChatCompletions handles chat completion requests.
// POST /v1/chat/completions
func (h *Handler) ChatCompletions(c echo.Context) error {
	var req llm.ChatCompletionRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, "invalid request body", "")
	}
	if len(req.Messages) == 0 {
		return invalidRequest(c, "messages is required", "messages")
	}
	if req.Stream {
		return invalidRequest(c, "streaming is not supported", "stream")
	}

	resp, err := h.service.ProxyChatCompletion(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return invalidRequest(c, err.Error(), "messages")
		}
		return c.JSON(http.StatusBadGateway, llm.ErrorResponse{
			Error: &llm.APIError{
				Message: err.Error(),
				Type:    "upstream_error",
			},
		})
	}

	return c.JSON(http.StatusOK, resp)
}

// ListModels lists the available providers as models.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   h.service.ListModels(c.Request().Context()),
	})
}
