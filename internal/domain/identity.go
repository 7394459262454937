package domain

import "time"

// Profile holds the application-owned user document keyed by identity ID.
// Field names match the persisted hash fields.
type Profile map[string]string

// Default profile field names.
const (
	ProfileFieldDisplayName      = "display_name"
	ProfileFieldEmail            = "email"
	ProfileFieldRole             = "role"
	ProfileFieldModulesCompleted = "modules_completed"
	ProfileFieldCurrentModule    = "current_module"
	ProfileFieldCreatedAt        = "created_at"
)

// Roles stored in the profile document.
const (
	RoleStudent = "student"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

// Identity represents an authenticated user identity from the identity provider.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	SessionID   string
	Admin       bool // admin custom claim from the provider
	CreatedAt   time.Time

	// Profile carries the merged application profile once enrichment ran.
	// Nil when the profile document is absent or the read failed.
	Profile Profile
}

// CachedSession holds session data stored in the cache.
type CachedSession struct {
	UserID      string
	Email       string
	DisplayName string
}

// Clone returns a copy of the profile so callers cannot mutate stored state.
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
