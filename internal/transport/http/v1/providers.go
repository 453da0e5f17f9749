package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gezhip02/chat-english/internal/domain"
)

// ListProviders lists registered providers.
// GET /v1/providers?available=true
func (h *Handler) ListProviders(c echo.Context) error {
	availableOnly := c.QueryParam("available") == "true"
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": h.service.ListProviders(availableOnly),
	})
}

// GetActiveProvider returns the active provider.
// GET /v1/providers/active
func (h *Handler) GetActiveProvider(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ProviderStatus())
}

// SetActiveProvider switches the active provider.
// PUT /v1/providers/active
func (h *Handler) SetActiveProvider(c echo.Context) error {
	var req domain.SetActiveProviderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	active, err := h.service.SetActiveProvider(c.Request().Context(), req.ProviderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, active)
}
