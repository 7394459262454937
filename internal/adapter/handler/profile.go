package handler

import (
	"log/slog"
	"net/http"

	"maba-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ProfileHandler handles internal service-to-service profile lookups.
type ProfileHandler struct {
	uc *usecase.GetProfile
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(uc *usecase.GetProfile) *ProfileHandler {
	return &ProfileHandler{uc: uc}
}

// Handle returns the profile document for the path user ID.
func (h *ProfileHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	userID := c.Param("id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id required")
	}

	profile, err := h.uc.Execute(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch profile", "error", err, "remote_addr", c.RealIP())
		return mapDomainError(err)
	}

	slog.InfoContext(ctx, "profile fetched", "user_id", userID, "remote_addr", c.RealIP())
	return c.JSON(http.StatusOK, profile)
}
