package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"maba-auth/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeIssuer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               server.URL + "/keys",
			"userinfo_endpoint":      server.URL + "/userinfo",
		})
	})
	return server
}

func TestNewFederatedGateway(t *testing.T) {
	issuer := newFakeIssuer(t)

	g, err := NewFederatedGateway(context.Background(), FederatedConfig{
		IssuerURL:   issuer.URL,
		ClientID:    "maba-web",
		RedirectURL: "http://127.0.0.1:0/callback",
	})

	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.Contains(t, g.config.Endpoint.AuthURL, "/authorize")
	assert.Equal(t, []string{"openid", "profile", "email"}, g.config.Scopes)
}

func TestNewFederatedGateway_MissingClientID(t *testing.T) {
	_, err := NewFederatedGateway(context.Background(), FederatedConfig{
		IssuerURL:   "http://idp",
		RedirectURL: "http://127.0.0.1:0/callback",
	})
	assert.Error(t, err)
}

func TestFederatedGateway_CallbackConsentDenied(t *testing.T) {
	issuer := newFakeIssuer(t)

	g, err := NewFederatedGateway(context.Background(), FederatedConfig{
		IssuerURL:   issuer.URL,
		ClientID:    "maba-web",
		RedirectURL: "http://127.0.0.1:0/callback",
	})
	require.NoError(t, err)

	results := make(chan callbackResult, 1)
	server, err := g.serveCallback("state-1", results)
	require.NoError(t, err)
	defer server.Close()

	resp, err := http.Get("http://" + server.Addr() + "/callback?error=access_denied&state=state-1")
	require.NoError(t, err)
	resp.Body.Close()

	result := <-results
	require.Error(t, result.err)
	category, ok := domain.AuthCategory(result.err)
	assert.True(t, ok)
	assert.Equal(t, domain.AuthUserCancelled, category)
	assert.Equal(t, "Sign-in was cancelled. Please try again.", result.err.Error())
}

func TestFederatedGateway_CallbackStateMismatch(t *testing.T) {
	issuer := newFakeIssuer(t)

	g, err := NewFederatedGateway(context.Background(), FederatedConfig{
		IssuerURL:   issuer.URL,
		ClientID:    "maba-web",
		RedirectURL: "http://127.0.0.1:0/callback",
	})
	require.NoError(t, err)

	results := make(chan callbackResult, 1)
	server, err := g.serveCallback("state-1", results)
	require.NoError(t, err)
	defer server.Close()

	resp, err := http.Get("http://" + server.Addr() + "/callback?code=abc&state=forged")
	require.NoError(t, err)
	resp.Body.Close()

	result := <-results
	require.Error(t, result.err)
	category, _ := domain.AuthCategory(result.err)
	assert.Equal(t, domain.AuthUnknown, category)
}

func TestFederatedGateway_SignInSupersedesPendingFlow(t *testing.T) {
	issuer := newFakeIssuer(t)

	// Reserve a fixed loopback port for the redirect so both flows contend
	// for the same listener.
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	redirectHost := reserved.Addr().String()
	require.NoError(t, reserved.Close())

	launched := make(chan string, 2)
	g, err := NewFederatedGateway(context.Background(), FederatedConfig{
		IssuerURL:   issuer.URL,
		ClientID:    "maba-web",
		RedirectURL: "http://" + redirectHost + "/callback",
		Launcher: func(url string) error {
			launched <- url
			return nil
		},
	})
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := g.SignIn(context.Background())
		firstErr <- err
	}()
	<-launched // first flow bound and awaiting its callback

	secondErr := make(chan error, 1)
	go func() {
		_, err := g.SignIn(context.Background())
		secondErr <- err
	}()
	<-launched // second flow took over the redirect port

	// The first caller learns it was superseded
	err = <-firstErr
	require.Error(t, err)
	category, _ := domain.AuthCategory(err)
	assert.Equal(t, domain.AuthRequestSuperseded, category)

	// The second flow keeps its registration after the first one exits
	g.mu.Lock()
	stillPending := g.pending != nil
	g.mu.Unlock()
	assert.True(t, stillPending, "second flow must stay registered after the superseded flow returns")

	// and its listener answers on the shared redirect port
	resp, err := http.Get("http://" + redirectHost + "/callback?error=access_denied&state=ignored")
	require.NoError(t, err)
	resp.Body.Close()

	err = <-secondErr
	require.Error(t, err)
	category, _ = domain.AuthCategory(err)
	assert.Equal(t, domain.AuthUserCancelled, category)
}

func TestTranslateConsentError(t *testing.T) {
	tests := []struct {
		code     string
		category domain.AuthErrorCategory
	}{
		{"access_denied", domain.AuthUserCancelled},
		{"popup_closed_by_user", domain.AuthUserCancelled},
		{"popup_blocked", domain.AuthPopupBlocked},
		{"cancelled_popup_request", domain.AuthRequestSuperseded},
		{"server_error", domain.AuthTransient},
		{"interaction_required", domain.AuthUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := translateConsentError(tt.code)
			category, ok := domain.AuthCategory(err)
			assert.True(t, ok)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken(32)
	require.NoError(t, err)
	b, err := randomToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
