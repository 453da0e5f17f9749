// Package internalapi provides HTTP handlers for operator-facing APIs:
// provider probes, configuration reloads, the audit trail and metrics.
package internalapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/repository"
	"github.com/gezhip02/chat-english/internal/service"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/internal/providers/probe", h.ProbeProviders)
	e.POST("/internal/config/reload", h.ReloadConfig)
	e.GET("/internal/events", h.ListEvents)
	e.GET("/internal/status", h.Status)
	e.GET("/metrics", echo.WrapHandler(h.service.Metrics().Handler()))
}

// ProbeProviders tests connectivity of every provider.
// POST /internal/providers/probe
func (h *Handler) ProbeProviders(c echo.Context) error {
	results := h.service.ProbeProviders(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"results": results,
		"active":  h.service.ProviderStatus().Active,
	})
}

// ReloadConfig re-reads the providers file.
// POST /internal/config/reload
func (h *Handler) ReloadConfig(c echo.Context) error {
	if err := h.service.ReloadFromFile(c.Request().Context()); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, h.service.ProviderStatus())
}

// ListEvents returns audit events.
// GET /internal/events?session_id=&after_ts=&types=a,b&limit=
func (h *Handler) ListEvents(c echo.Context) error {
	filter := repository.EventFilter{
		SessionID: c.QueryParam("session_id"),
		Limit:     100,
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			filter.AfterTs = val
		}
	}
	if types := c.QueryParam("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	events, err := h.service.ListEvents(c.Request().Context(), filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// Status summarizes the registry and live sessions.
// GET /internal/status
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": h.service.ProviderStatus(),
		"sessions":  h.service.SessionCount(),
	})
}
