package handler

import (
	"net/http"

	"maba-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ProgressHandler handles certification progress updates.
type ProgressHandler struct {
	uc *usecase.UpdateProgress
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(uc *usecase.UpdateProgress) *ProgressHandler {
	return &ProgressHandler{uc: uc}
}

// progressRequest represents the progress update payload.
type progressRequest struct {
	ModulesCompleted int `json:"modulesCompleted"`
}

// progressResponse represents the counters after the update.
type progressResponse struct {
	OK               bool `json:"ok"`
	ModulesCompleted int  `json:"modulesCompleted"`
	CurrentModule    int  `json:"currentModule"`
}

// Handle processes POST /api/progress for the authenticated user.
func (h *ProgressHandler) Handle(c echo.Context) error {
	cookie, err := c.Cookie("ory_kratos_session")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "session cookie not found")
	}

	var req progressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ModulesCompleted <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "modulesCompleted must be positive")
	}

	result, err := h.uc.Execute(c.Request().Context(), cookie.Value, req.ModulesCompleted)
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusOK, progressResponse{
		OK:               true,
		ModulesCompleted: result.ModulesCompleted,
		CurrentModule:    result.CurrentModule,
	})
}
