package domain

import "context"

// IdentityProvider is the boundary to the external credential service.
// Implementations translate provider-specific rejections into AuthError.
type IdentityProvider interface {
	// CreateAccount registers a new email/password account.
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	// Authenticate signs in with email/password credentials.
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	// SignOut revokes the provider session. Safe to call with no session.
	SignOut(ctx context.Context) error
	// SendPasswordReset requests an out-of-band reset message. The provider
	// governs whether the address is revealed as registered.
	SendPasswordReset(ctx context.Context, email string) error
	// UpdateDisplayName sets the display-name trait on the identity.
	UpdateDisplayName(ctx context.Context, userID, name string) error
	// CurrentIdentity resolves the identity for the held session, or nil
	// when no session is active.
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// FederatedAuthenticator drives an interactive provider-hosted consent flow.
type FederatedAuthenticator interface {
	SignIn(ctx context.Context) (*Identity, error)
}

// ProfileStore provides access to user profile documents.
type ProfileStore interface {
	// Get returns the profile for id, or nil when absent. Only transport
	// failures return an error.
	Get(ctx context.Context, id string) (Profile, error)
	// Ensure creates the profile with defaults merged with fields when it
	// does not exist. Existing documents are left untouched.
	Ensure(ctx context.Context, id string, fields Profile) error
}

// ProgressRecorder records certification module completions on a profile.
type ProgressRecorder interface {
	// AddModuleProgress adds completed modules to the profile's counters and
	// returns the new completed total. Returns ErrProfileNotFound when no
	// profile exists for id.
	AddModuleProgress(ctx context.Context, id string, completed int) (int, error)
}

// SessionValidator validates a session cookie against the identity provider.
type SessionValidator interface {
	ValidateSession(ctx context.Context, cookie string) (*Identity, error)
}

// SessionCache provides read/write access to cached session data.
type SessionCache interface {
	Get(sessionID string) (*CachedSession, bool)
	Set(sessionID string, session CachedSession)
}

// TokenIssuer generates signed backend JWT tokens.
type TokenIssuer interface {
	IssueBackendToken(identity *Identity, sessionID string) (string, error)
}

// CSRFTokenGenerator generates and verifies session-bound CSRF tokens.
type CSRFTokenGenerator interface {
	Generate(sessionID string) (string, error)
	Verify(sessionID, token string) error
}
