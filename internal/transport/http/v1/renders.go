package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/domain"
)

// CreateRender renders text as a standalone avatar video.
// POST /v1/renders
func (h *Handler) CreateRender(c echo.Context) error {
	var req domain.RenderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.Render(c.Request().Context(), req)
	if err != nil {
		status, msg := errorStatus(err)
		body := map[string]interface{}{"error": msg}
		if resp != nil {
			body["id"] = resp.ID
			body["status"] = resp.Status
		}
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRender returns a recorded render job.
// GET /v1/renders/:job_id
func (h *Handler) GetRender(c echo.Context) error {
	job, err := h.service.GetRenderJob(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// MockChat answers from the scenario mock rules without a session.
// POST /v1/mock-chat
func (h *Handler) MockChat(c echo.Context) error {
	var req domain.MockChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	resp, err := h.service.MockChat(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     resp.Content,
		"model":       resp.Model,
		"provider_id": resp.ProviderID,
	})
}
