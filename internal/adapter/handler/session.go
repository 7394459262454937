package handler

import (
	"net/http"
	"time"

	"maba-auth/internal/domain"
	"maba-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SessionHandler handles /api/session returning JSON for the frontend.
type SessionHandler struct {
	uc *usecase.GetSession
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(uc *usecase.GetSession) *SessionHandler {
	return &SessionHandler{uc: uc}
}

// sessionUser represents the user object in the response.
type sessionUser struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName"`
	Role        string         `json:"role"`
	Admin       bool           `json:"admin"`
	CreatedAt   time.Time      `json:"createdAt"`
	Profile     domain.Profile `json:"profile,omitempty"`
}

// sessionInfo represents the session object in the response.
type sessionInfo struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// sessionResponse represents the JSON response structure.
type sessionResponse struct {
	OK      bool        `json:"ok"`
	User    sessionUser `json:"user"`
	Session sessionInfo `json:"session"`
}

// Handle processes the /api/session endpoint and returns JSON.
func (h *SessionHandler) Handle(c echo.Context) error {
	cookie, err := c.Cookie("ory_kratos_session")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "session cookie not found")
	}

	result, err := h.uc.Execute(c.Request().Context(), cookie.Value)
	if err != nil {
		return mapDomainError(err)
	}

	c.Response().Header().Set("X-Maba-Backend-Token", result.BackendToken)

	return c.JSON(http.StatusOK, sessionResponse{
		OK: true,
		User: sessionUser{
			ID:          result.UserID,
			Email:       result.Email,
			DisplayName: result.DisplayName,
			Role:        result.Role,
			Admin:       result.Admin,
			CreatedAt:   result.CreatedAt,
			Profile:     result.Profile,
		},
		Session: sessionInfo{
			ID:     result.SessionID,
			Active: true,
		},
	})
}
