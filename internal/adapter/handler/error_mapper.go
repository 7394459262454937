package handler

import (
	"errors"
	"net/http"

	"maba-auth/internal/domain"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
func mapDomainError(err error) *echo.HTTPError {
	if category, ok := domain.AuthCategory(err); ok {
		return mapAuthCategory(category, err)
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrAuthFailed),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrMissingIdentity):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

	case errors.Is(err, domain.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")

	case errors.Is(err, domain.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "identity provider unavailable")

	case errors.Is(err, domain.ErrAdminNotConfigured):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal configuration error")

	case errors.Is(err, domain.ErrTokenGeneration),
		errors.Is(err, domain.ErrCSRFSecretMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation error")

	case errors.Is(err, domain.ErrCSRFTokenInvalid):
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")

	case errors.Is(err, domain.ErrProfileStore):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "profile store unavailable")

	case errors.Is(err, domain.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// mapAuthCategory maps provider rejection categories to HTTP statuses. The
// categorized message is user-facing and safe to return verbatim.
func mapAuthCategory(category domain.AuthErrorCategory, err error) *echo.HTTPError {
	switch category {
	case domain.AuthInvalidCredentials:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case domain.AuthEmailInUse:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case domain.AuthWeakPassword, domain.AuthInvalidEmail:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case domain.AuthTransient:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
