package usecase

import (
	"context"
	"errors"
	"log/slog"

	"maba-auth/internal/domain"
)

// ProgressResult holds the counters after a progress update.
type ProgressResult struct {
	ModulesCompleted int
	CurrentModule    int
}

// UpdateProgress records certification module completions for the
// authenticated user.
type UpdateProgress struct {
	validator domain.SessionValidator
	cache     domain.SessionCache
	progress  domain.ProgressRecorder
	logger    *slog.Logger
}

// NewUpdateProgress creates a new UpdateProgress usecase.
func NewUpdateProgress(v domain.SessionValidator, c domain.SessionCache, p domain.ProgressRecorder, l *slog.Logger) *UpdateProgress {
	return &UpdateProgress{validator: v, cache: c, progress: p, logger: l}
}

// Execute resolves the session to a user and adds completed modules to their
// profile counters.
func (uc *UpdateProgress) Execute(ctx context.Context, cookieValue string, completed int) (*ProgressResult, error) {
	if completed <= 0 {
		return nil, errors.New("completed modules must be positive")
	}

	identity, err := NewValidateSession(uc.validator, uc.cache, uc.logger).Execute(ctx, cookieValue)
	if err != nil {
		return nil, err
	}

	total, err := uc.progress.AddModuleProgress(ctx, identity.UserID, completed)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to record progress", "user_id", identity.UserID, "error", err)
		return nil, err
	}

	return &ProgressResult{
		ModulesCompleted: total,
		CurrentModule:    total + 1,
	}, nil
}
