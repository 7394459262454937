package client

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"maba-auth/config"
	"maba-auth/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider implements domain.IdentityProvider for testing.
type fakeProvider struct {
	current    *domain.Identity
	currentErr error

	created    *domain.Identity
	createErr  error
	authedWith string
	authed     *domain.Identity
	authErr    error

	signOutCalled bool
	signOutErr    error

	resetEmail string
	resetErr   error

	displayNames map[string]string
	displayErr   error
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, password string) (*domain.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return cloneIdentity(f.created), nil
}

func (f *fakeProvider) Authenticate(_ context.Context, email, password string) (*domain.Identity, error) {
	f.authedWith = email
	if f.authErr != nil {
		return nil, f.authErr
	}
	return cloneIdentity(f.authed), nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.signOutCalled = true
	return f.signOutErr
}

func (f *fakeProvider) SendPasswordReset(_ context.Context, email string) error {
	f.resetEmail = email
	return f.resetErr
}

func (f *fakeProvider) UpdateDisplayName(_ context.Context, userID, name string) error {
	if f.displayErr != nil {
		return f.displayErr
	}
	if f.displayNames == nil {
		f.displayNames = make(map[string]string)
	}
	f.displayNames[userID] = name
	return nil
}

func (f *fakeProvider) CurrentIdentity(context.Context) (*domain.Identity, error) {
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return cloneIdentity(f.current), nil
}

// fakeStore implements domain.ProfileStore with create-if-missing merge
// semantics matching the real store.
type fakeStore struct {
	docs   map[string]domain.Profile
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]domain.Profile)}
}

func (s *fakeStore) Get(_ context.Context, id string) (domain.Profile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.docs[id].Clone(), nil
}

func (s *fakeStore) Ensure(_ context.Context, id string, fields domain.Profile) error {
	if _, exists := s.docs[id]; exists {
		return nil
	}
	doc := domain.Profile{
		domain.ProfileFieldRole:             domain.RoleStudent,
		domain.ProfileFieldModulesCompleted: "0",
		domain.ProfileFieldCurrentModule:    "1",
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.docs[id] = doc
	return nil
}

// fakeFederated implements domain.FederatedAuthenticator.
type fakeFederated struct {
	identity *domain.Identity
	err      error
}

func (f *fakeFederated) SignIn(context.Context) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return cloneIdentity(f.identity), nil
}

func newTestController(provider *fakeProvider, store *fakeStore, opts Options) *Controller {
	return NewController(provider, store, slog.Default(), opts)
}

func TestController_LoadingFlipsOnceOnStart(t *testing.T) {
	t.Run("anonymous resolution", func(t *testing.T) {
		c := newTestController(&fakeProvider{}, newFakeStore(), Options{})

		assert.True(t, c.Loading())
		assert.Equal(t, StateResolving, c.State())

		require.NoError(t, c.Start(context.Background()))
		assert.False(t, c.Loading())
		assert.Equal(t, StateAnonymous, c.State())
		assert.Nil(t, c.CurrentIdentity())
	})

	t.Run("authenticated resolution", func(t *testing.T) {
		provider := &fakeProvider{current: &domain.Identity{UserID: "user-1", Email: "a@example.com"}}
		c := newTestController(provider, newFakeStore(), Options{})

		require.NoError(t, c.Start(context.Background()))
		assert.False(t, c.Loading())
		assert.Equal(t, StateAuthenticated, c.State())
		require.NotNil(t, c.CurrentIdentity())
		assert.Equal(t, "user-1", c.CurrentIdentity().UserID)
	})

	t.Run("failed resolution still settles", func(t *testing.T) {
		provider := &fakeProvider{currentErr: errors.New("provider down")}
		c := newTestController(provider, newFakeStore(), Options{})

		err := c.Start(context.Background())
		assert.Error(t, err)
		assert.False(t, c.Loading())
		assert.Equal(t, StateAnonymous, c.State())
	})
}

func TestController_SubscriberNotifiedOnce(t *testing.T) {
	provider := &fakeProvider{current: &domain.Identity{UserID: "user-1"}}
	c := newTestController(provider, newFakeStore(), Options{})

	var calls []*domain.Identity
	unsubscribe := c.Subscribe(func(identity *domain.Identity) {
		calls = append(calls, identity)
	})
	defer unsubscribe()

	require.NoError(t, c.Start(context.Background()))
	require.Len(t, calls, 1)
	assert.Equal(t, "user-1", calls[0].UserID)
}

func TestController_SubscribeAfterSettleFiresImmediately(t *testing.T) {
	c := newTestController(&fakeProvider{}, newFakeStore(), Options{})
	require.NoError(t, c.Start(context.Background()))

	fired := false
	c.Subscribe(func(identity *domain.Identity) {
		fired = true
		assert.Nil(t, identity)
	})
	assert.True(t, fired)
}

func TestController_SignUp(t *testing.T) {
	provider := &fakeProvider{
		created: &domain.Identity{UserID: "user-new", Email: "new@example.com"},
	}
	store := newFakeStore()
	c := newTestController(provider, store, Options{})

	identity, err := c.SignUp(context.Background(), "new@example.com", "pass-phrase", "Coach Rivers")
	require.NoError(t, err)

	// Display name propagated to the provider and the returned identity
	assert.Equal(t, "Coach Rivers", provider.displayNames["user-new"])
	assert.Equal(t, "Coach Rivers", identity.DisplayName)

	// Profile exists with defaults and the returned identity carries it
	profile := c.Profile(context.Background(), "user-new")
	require.NotNil(t, profile)
	assert.Equal(t, domain.RoleStudent, profile[domain.ProfileFieldRole])
	assert.Equal(t, "0", profile[domain.ProfileFieldModulesCompleted])
	assert.Equal(t, "1", profile[domain.ProfileFieldCurrentModule])
	require.NotNil(t, identity.Profile)
	assert.Equal(t, domain.RoleStudent, identity.Profile[domain.ProfileFieldRole])

	assert.Equal(t, StateAuthenticated, c.State())
}

func TestController_SignUp_DisplayNameFailurePropagates(t *testing.T) {
	provider := &fakeProvider{
		created:    &domain.Identity{UserID: "user-new"},
		displayErr: errors.New("admin API down"),
	}
	c := newTestController(provider, newFakeStore(), Options{})

	_, err := c.SignUp(context.Background(), "new@example.com", "pass", "Name")
	assert.Error(t, err)
	assert.Equal(t, err, c.LastError())
}

func TestController_SignIn_EnsuresProfileWithoutOverwrite(t *testing.T) {
	provider := &fakeProvider{
		authed: &domain.Identity{UserID: "user-1", Email: "a@example.com", DisplayName: "B"},
	}
	store := newFakeStore()
	store.docs["user-1"] = domain.Profile{
		domain.ProfileFieldDisplayName: "A",
		"custom_field":                 "X",
	}
	c := newTestController(provider, store, Options{})

	identity, err := c.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	// Existing fields survive the ensure
	assert.Equal(t, "A", store.docs["user-1"][domain.ProfileFieldDisplayName])
	assert.Equal(t, "X", store.docs["user-1"]["custom_field"])

	// The merged profile rides on the returned identity
	require.NotNil(t, identity.Profile)
	assert.Equal(t, "X", identity.Profile["custom_field"])
}

func TestController_SignIn_InvalidCredentials(t *testing.T) {
	authErr := domain.NewAuthError(domain.AuthInvalidCredentials, errors.New("rejected"))
	provider := &fakeProvider{authErr: authErr}
	c := newTestController(provider, newFakeStore(), Options{})

	_, err := c.SignIn(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)

	category, ok := domain.AuthCategory(err)
	assert.True(t, ok)
	assert.Equal(t, domain.AuthInvalidCredentials, category)
	assert.Equal(t, err, c.LastError())
}

func TestController_LastErrorClearedOnNextOperation(t *testing.T) {
	provider := &fakeProvider{
		authErr: domain.NewAuthError(domain.AuthInvalidCredentials, nil),
	}
	c := newTestController(provider, newFakeStore(), Options{})

	_, err := c.SignIn(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)
	require.Error(t, c.LastError())

	require.NoError(t, c.ResetPassword(context.Background(), "a@example.com"))
	assert.NoError(t, c.LastError())
}

func TestController_SignInWithProvider_Cancelled(t *testing.T) {
	federated := &fakeFederated{
		err: domain.NewAuthError(domain.AuthUserCancelled, errors.New("access_denied")),
	}
	c := newTestController(&fakeProvider{}, newFakeStore(), Options{Federated: federated})

	_, err := c.SignInWithProvider(context.Background())
	require.Error(t, err)

	category, _ := domain.AuthCategory(err)
	assert.Equal(t, domain.AuthUserCancelled, category)
	assert.Equal(t, "Sign-in was cancelled. Please try again.", err.Error())
}

func TestController_SignInWithProvider_NotConfigured(t *testing.T) {
	c := newTestController(&fakeProvider{}, newFakeStore(), Options{})

	_, err := c.SignInWithProvider(context.Background())
	assert.True(t, errors.Is(err, ErrFederatedNotConfigured))
}

func TestController_SignOut(t *testing.T) {
	provider := &fakeProvider{current: &domain.Identity{UserID: "user-1"}}
	c := newTestController(provider, newFakeStore(), Options{})
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, c.SignOut(context.Background()))
	assert.True(t, provider.signOutCalled)
	assert.Equal(t, StateAnonymous, c.State())
	assert.Nil(t, c.CurrentIdentity())

	// Idempotent with no active session
	require.NoError(t, c.SignOut(context.Background()))
}

func TestController_IsAdmin(t *testing.T) {
	tests := []struct {
		name     string
		identity *domain.Identity
		want     bool
	}{
		{"nil identity", nil, false},
		{"default admin email", &domain.Identity{Email: config.DefaultAdminEmail}, true},
		{"admin claim", &domain.Identity{Email: "coach@example.com", Admin: true}, true},
		{"plain user", &domain.Identity{Email: "coach@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(&fakeProvider{current: tt.identity}, newFakeStore(), Options{})
			require.NoError(t, c.Start(context.Background()))
			assert.Equal(t, tt.want, c.IsAdmin())
		})
	}
}

func TestController_ProfileFetchFailureSwallowed(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("store down")
	provider := &fakeProvider{authed: &domain.Identity{UserID: "user-1"}}
	c := newTestController(provider, store, Options{})

	// Enrichment failure does not block sign-in
	identity, err := c.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, identity.Profile)

	// Direct lookup degrades to absent
	assert.Nil(t, c.Profile(context.Background(), "user-1"))
	assert.NoError(t, c.LastError())
}

func TestController_CloseStopsNotifications(t *testing.T) {
	provider := &fakeProvider{authed: &domain.Identity{UserID: "user-1"}}
	c := newTestController(provider, newFakeStore(), Options{})
	require.NoError(t, c.Start(context.Background()))

	calls := 0
	c.Subscribe(func(*domain.Identity) { calls++ })
	before := calls

	c.Close()

	_, err := c.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, before, calls)
}
