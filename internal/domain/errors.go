package domain

import "errors"

// Authentication errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrSessionInactive = errors.New("session is not active")
	ErrMissingIdentity = errors.New("missing identity in session")
)

// Token errors.
var (
	ErrTokenGeneration   = errors.New("token generation failed")
	ErrCSRFSecretMissing = errors.New("CSRF secret not configured")
	ErrCSRFTokenInvalid  = errors.New("invalid CSRF token")
	ErrTokenFetch        = errors.New("CSRF token fetch failed")
)

// External service errors.
var (
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrAdminNotConfigured  = errors.New("admin API not configured")
	ErrProfileStore        = errors.New("profile store unavailable")
	ErrProfileNotFound     = errors.New("profile not found")
)

// Rate limiting errors.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AuthErrorCategory is the closed set of provider rejection categories.
// Provider-specific codes are translated into this set exactly once, at the
// gateway boundary; everything downstream matches on the category.
type AuthErrorCategory string

const (
	AuthInvalidCredentials AuthErrorCategory = "invalid-credentials"
	AuthEmailInUse         AuthErrorCategory = "email-in-use"
	AuthWeakPassword       AuthErrorCategory = "weak-password"
	AuthInvalidEmail       AuthErrorCategory = "invalid-email"
	AuthUserCancelled      AuthErrorCategory = "user-cancelled"
	AuthPopupBlocked       AuthErrorCategory = "popup-blocked"
	AuthRequestSuperseded  AuthErrorCategory = "request-superseded"
	AuthTransient          AuthErrorCategory = "transient"
	AuthUnknown            AuthErrorCategory = "unknown"
)

// authMessages maps each category to its user-facing message.
var authMessages = map[AuthErrorCategory]string{
	AuthInvalidCredentials: "Invalid email or password.",
	AuthEmailInUse:         "An account with this email already exists.",
	AuthWeakPassword:       "Password is too weak. Please choose a stronger password.",
	AuthInvalidEmail:       "Please enter a valid email address.",
	AuthUserCancelled:      "Sign-in was cancelled. Please try again.",
	AuthPopupBlocked:       "Pop-up was blocked by your browser. Please allow pop-ups and try again.",
	AuthRequestSuperseded:  "Sign-in request was cancelled. Please try again.",
	AuthTransient:          "Internal authentication error. Please check your internet connection and try again.",
	AuthUnknown:            "Authentication failed. Please try again.",
}

// AuthError is a categorized authentication failure surfaced to callers.
type AuthError struct {
	Category AuthErrorCategory
	Err      error // underlying provider error, may be nil
}

func (e *AuthError) Error() string {
	if msg, ok := authMessages[e.Category]; ok {
		return msg
	}
	return authMessages[AuthUnknown]
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps a provider error with a category.
func NewAuthError(category AuthErrorCategory, err error) *AuthError {
	return &AuthError{Category: category, Err: err}
}

// AuthCategory extracts the category from an error chain.
// Returns AuthUnknown, false when the chain carries no AuthError.
func AuthCategory(err error) (AuthErrorCategory, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Category, true
	}
	return AuthUnknown, false
}
