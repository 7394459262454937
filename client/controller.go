// Package client is the embeddable SDK for MABA platform applications: a
// session controller over the identity provider and a CSRF-guarded request
// gateway. One Controller and one SecureGateway are constructed per
// application context and shared by everything in it.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"maba-auth/config"
	"maba-auth/internal/domain"
)

// SessionState describes the controller's lifecycle position.
type SessionState string

const (
	// StateResolving holds from construction until the first resolution.
	StateResolving SessionState = "resolving"
	// StateAuthenticated means the provider reports a signed-in principal.
	StateAuthenticated SessionState = "authenticated"
	// StateAnonymous means no principal is signed in.
	StateAnonymous SessionState = "anonymous"
)

// ErrFederatedNotConfigured is returned by SignInWithProvider when no
// federated authenticator was wired in.
var ErrFederatedNotConfigured = errors.New("federated sign-in not configured")

// Subscriber receives the current identity (nil when anonymous) after every
// session change. The first notification arrives once the initial resolution
// completes; subscribing after that point delivers it immediately.
type Subscriber func(*domain.Identity)

// Controller is the single source of truth for the signed-in identity. All
// identity-provider interaction goes through it; dependents subscribe for
// session changes instead of reconstructing state from operation returns.
type Controller struct {
	provider   domain.IdentityProvider
	federated  domain.FederatedAuthenticator
	profiles   domain.ProfileStore
	adminEmail string
	logger     *slog.Logger

	mu       sync.RWMutex
	state    SessionState
	identity *domain.Identity
	lastErr  error
	loading  bool
	closed   bool
	subs     map[int]Subscriber
	nextSub  int
}

// Options configures optional Controller collaborators.
type Options struct {
	// Federated enables SignInWithProvider.
	Federated domain.FederatedAuthenticator
	// AdminEmail overrides the default administrative address.
	AdminEmail string
}

// NewController builds a controller in the resolving state. Call Start to
// resolve the current session and Close when the owning context goes away.
func NewController(provider domain.IdentityProvider, profiles domain.ProfileStore, logger *slog.Logger, opts Options) *Controller {
	adminEmail := opts.AdminEmail
	if adminEmail == "" {
		adminEmail = config.DefaultAdminEmail
	}
	return &Controller{
		provider:   provider,
		federated:  opts.Federated,
		profiles:   profiles,
		adminEmail: adminEmail,
		logger:     logger,
		state:      StateResolving,
		loading:    true,
		subs:       make(map[int]Subscriber),
	}
}

// Start resolves the current provider session and settles the initial state.
// The controller leaves the loading state exactly once, here, whether the
// resolution finds a principal, finds none, or fails.
func (c *Controller) Start(ctx context.Context) error {
	identity, err := c.provider.CurrentIdentity(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "initial session resolution failed", "error", err)
		c.settle(ctx, nil)
		return err
	}
	c.settle(ctx, identity)
	return nil
}

// Subscribe registers fn for session-change notifications and returns its
// unsubscribe function. If the session already settled, fn is invoked
// immediately with the current identity.
func (c *Controller) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	settled := !c.loading
	identity := cloneIdentity(c.identity)
	c.mu.Unlock()

	if settled {
		fn(identity)
	}

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close disposes the controller. Pending operations become no-ops for state
// purposes and no subscriber fires afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.subs = make(map[int]Subscriber)
	c.mu.Unlock()
}

// SignUp creates a new account, sets its display name, and ensures a profile
// document exists with default fields. Returns the enriched identity.
func (c *Controller) SignUp(ctx context.Context, email, password, displayName string) (*domain.Identity, error) {
	c.clearErr()

	identity, err := c.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, c.fail(ctx, "sign up", err)
	}

	if displayName != "" {
		if err := c.provider.UpdateDisplayName(ctx, identity.UserID, displayName); err != nil {
			return nil, c.fail(ctx, "sign up", err)
		}
		identity.DisplayName = displayName
	}

	c.ensureProfile(ctx, identity)
	return c.settle(ctx, identity), nil
}

// SignIn authenticates email/password credentials and ensures a profile
// document exists. Returns the enriched identity.
func (c *Controller) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	c.clearErr()

	identity, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, c.fail(ctx, "sign in", err)
	}

	c.ensureProfile(ctx, identity)
	return c.settle(ctx, identity), nil
}

// SignInWithProvider runs the federated interactive consent flow.
func (c *Controller) SignInWithProvider(ctx context.Context) (*domain.Identity, error) {
	c.clearErr()

	if c.federated == nil {
		return nil, c.fail(ctx, "federated sign in", ErrFederatedNotConfigured)
	}

	identity, err := c.federated.SignIn(ctx)
	if err != nil {
		return nil, c.fail(ctx, "federated sign in", err)
	}

	c.ensureProfile(ctx, identity)
	return c.settle(ctx, identity), nil
}

// SignOut revokes the provider session and clears the local identity.
// Idempotent: signing out with no active session succeeds.
func (c *Controller) SignOut(ctx context.Context) error {
	c.clearErr()

	if err := c.provider.SignOut(ctx); err != nil {
		return c.fail(ctx, "sign out", err)
	}
	c.settle(ctx, nil)
	return nil
}

// ResetPassword requests an out-of-band reset message. Whether the address
// is registered stays undisclosed; that is the provider's contract and this
// method adds no signal of its own.
func (c *Controller) ResetPassword(ctx context.Context, email string) error {
	c.clearErr()

	if err := c.provider.SendPasswordReset(ctx, email); err != nil {
		return c.fail(ctx, "reset password", err)
	}
	return nil
}

// Profile fetches the profile document for id. Absent documents and
// transport failures both yield nil: profile data is best-effort enrichment
// and must never block rendering.
func (c *Controller) Profile(ctx context.Context, id string) domain.Profile {
	profile, err := c.profiles.Get(ctx, id)
	if err != nil {
		c.logger.ErrorContext(ctx, "profile fetch failed", "user_id", id, "error", err)
		return nil
	}
	return profile
}

// IsAdmin reports whether the current identity is administrative: either the
// fixed admin address or a provider admin claim. False while anonymous.
func (c *Controller) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.identity == nil {
		return false
	}
	return c.identity.Email == c.adminEmail || c.identity.Admin
}

// CurrentIdentity returns a copy of the current identity, or nil.
func (c *Controller) CurrentIdentity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneIdentity(c.identity)
}

// State returns the session lifecycle state.
func (c *Controller) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Loading reports whether the initial resolution is still pending.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// LastError returns the failure recorded by the most recent state-changing
// operation, or nil. Every operation clears it on entry.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// settle installs identity as the current session, enriching it with the
// profile document first, and notifies subscribers. Both the returned value
// and the notification carry the same merged identity, so callers and
// subscribers observe one consistent view.
func (c *Controller) settle(ctx context.Context, identity *domain.Identity) *domain.Identity {
	if identity != nil {
		if profile := c.Profile(ctx, identity.UserID); profile != nil {
			identity.Profile = profile
			if identity.DisplayName == "" {
				identity.DisplayName = profile[domain.ProfileFieldDisplayName]
			}
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return cloneIdentity(identity)
	}
	c.identity = identity
	if identity != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
	c.loading = false
	subs := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(cloneIdentity(identity))
	}
	return cloneIdentity(identity)
}

// ensureProfile creates the profile document if missing. Failures are logged
// and swallowed: a missing profile degrades to defaults, it never blocks
// sign-in.
func (c *Controller) ensureProfile(ctx context.Context, identity *domain.Identity) {
	fields := domain.Profile{
		domain.ProfileFieldDisplayName: identity.DisplayName,
		domain.ProfileFieldEmail:       identity.Email,
	}
	if err := c.profiles.Ensure(ctx, identity.UserID, fields); err != nil {
		c.logger.ErrorContext(ctx, "profile create failed", "user_id", identity.UserID, "error", err)
	}
}

func (c *Controller) clearErr() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

func (c *Controller) fail(ctx context.Context, op string, err error) error {
	c.logger.ErrorContext(ctx, op+" failed", "error", err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func cloneIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	out := *identity
	out.Profile = identity.Profile.Clone()
	return &out
}
