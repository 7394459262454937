package usecase

import (
	"context"
	"log/slog"

	"maba-auth/internal/domain"
)

// GetProfile retrieves a user profile document for internal service
// consumption.
type GetProfile struct {
	profiles domain.ProfileStore
	logger   *slog.Logger
}

// NewGetProfile creates a new GetProfile usecase.
func NewGetProfile(p domain.ProfileStore, l *slog.Logger) *GetProfile {
	return &GetProfile{profiles: p, logger: l}
}

// Execute fetches the profile for userID. Returns ErrProfileNotFound when the
// document does not exist.
func (uc *GetProfile) Execute(ctx context.Context, userID string) (domain.Profile, error) {
	profile, err := uc.profiles.Get(ctx, userID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to fetch profile", "user_id", userID, "error", err)
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}
