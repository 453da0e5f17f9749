package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/domain"
)

// ListScenarios returns the scenario catalog.
// GET /v1/scenarios?difficulty=
func (h *Handler) ListScenarios(c echo.Context) error {
	scenarios, err := h.service.ListScenarios(c.QueryParam("difficulty"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scenarios": scenarios,
	})
}

// StartSession starts a new scenario conversation.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var req domain.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.StartSession(c.Request().Context(), "", req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSession describes a live session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	info, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// EndSession ends a session and cancels its renders.
// DELETE /v1/sessions/:session_id
func (h *Handler) EndSession(c echo.Context) error {
	if err := h.service.EndSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SubmitTurn submits one finalized utterance.
// POST /v1/sessions/:session_id/turns
func (h *Handler) SubmitTurn(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.SubmitTurn(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		if resp == nil {
			return writeError(c, err)
		}
		// The reply exists; only the render failed.
		status, msg := errorStatus(err)
		return c.JSON(status, map[string]interface{}{
			"error":         msg,
			"session_id":    resp.SessionID,
			"reply":         resp.Reply,
			"model":         resp.Model,
			"provider_id":   resp.ProviderID,
			"render_job_id": resp.RenderJob,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// GetGreeting returns the opening line of the session.
// GET /v1/sessions/:session_id/greeting
func (h *Handler) GetGreeting(c echo.Context) error {
	greeting, err := h.service.Greeting(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"greeting": greeting})
}

// RenderGreeting renders the greeting as an avatar video.
// POST /v1/sessions/:session_id/greeting/render
func (h *Handler) RenderGreeting(c echo.Context) error {
	job, err := h.service.RenderGreeting(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.RenderResponse{ID: job.JobID, URL: job.ResultURL, Status: job.State})
}

// GetSessionMessages returns the conversation log.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	messages, err := h.service.GetMessages(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

type setMockRequest struct {
	UseMock bool `json:"use_mock"`
}

// SetSessionMock toggles mock replies for a session.
// PUT /v1/sessions/:session_id/mock
func (h *Handler) SetSessionMock(c echo.Context) error {
	var req setMockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := h.service.SetUseMock(c.Request().Context(), c.Param("session_id"), req.UseMock); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"use_mock": req.UseMock})
}

// ListSessionRenders lists recent render jobs of a session.
// GET /v1/sessions/:session_id/renders
func (h *Handler) ListSessionRenders(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	jobs, err := h.service.ListRenderJobs(c.Request().Context(), c.Param("session_id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"renders": jobs,
	})
}
