package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maba-auth/internal/domain"
)

// SessionResult holds the data returned by GetSession.
type SessionResult struct {
	UserID       string
	Email        string
	DisplayName  string
	Role         string
	Admin        bool
	SessionID    string
	CreatedAt    time.Time
	Profile      domain.Profile
	BackendToken string
}

// GetSession orchestrates session retrieval with profile enrichment and JWT
// generation for frontend consumption.
type GetSession struct {
	validator domain.SessionValidator
	cache     domain.SessionCache
	profiles  domain.ProfileStore
	token     domain.TokenIssuer
	logger    *slog.Logger
}

// NewGetSession creates a new GetSession usecase.
func NewGetSession(v domain.SessionValidator, c domain.SessionCache, p domain.ProfileStore, t domain.TokenIssuer, l *slog.Logger) *GetSession {
	return &GetSession{validator: v, cache: c, profiles: p, token: t, logger: l}
}

// Execute validates the session, merges the profile document, and generates a
// backend JWT token. A missing or unreachable profile degrades to defaults and
// never fails the call.
func (uc *GetSession) Execute(ctx context.Context, cookieValue string) (*SessionResult, error) {
	var identity *domain.Identity

	// Check cache first
	if cached, found := uc.cache.Get(cookieValue); found {
		identity = &domain.Identity{
			UserID:      cached.UserID,
			Email:       cached.Email,
			DisplayName: cached.DisplayName,
			SessionID:   cookieValue,
		}
	} else {
		// Cache miss, validate with Kratos
		fullCookie := fmt.Sprintf("ory_kratos_session=%s", cookieValue)
		kratosIdentity, err := uc.validator.ValidateSession(ctx, fullCookie)
		if err != nil {
			return nil, err
		}

		identity = kratosIdentity
		identity.SessionID = cookieValue

		uc.cache.Set(cookieValue, domain.CachedSession{
			UserID:      identity.UserID,
			Email:       identity.Email,
			DisplayName: identity.DisplayName,
		})
	}

	role := domain.RoleStudent
	profile, err := uc.profiles.Get(ctx, identity.UserID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "profile enrichment failed", "user_id", identity.UserID, "error", err)
	} else if profile != nil {
		identity.Profile = profile
		if r := profile[domain.ProfileFieldRole]; r != "" {
			role = r
		}
		if identity.DisplayName == "" {
			identity.DisplayName = profile[domain.ProfileFieldDisplayName]
		}
	}

	// Generate backend JWT
	backendToken, err := uc.token.IssueBackendToken(identity, cookieValue)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to issue backend token", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenGeneration, err)
	}

	return &SessionResult{
		UserID:       identity.UserID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		Role:         role,
		Admin:        identity.Admin,
		SessionID:    cookieValue,
		CreatedAt:    identity.CreatedAt,
		Profile:      profile,
		BackendToken: backendToken,
	}, nil
}
