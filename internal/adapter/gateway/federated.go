package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"maba-auth/internal/domain"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// BrowserLauncher opens the consent URL in the user's browser.
type BrowserLauncher func(url string) error

// FederatedConfig holds configuration for the federated sign-in gateway.
type FederatedConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string // loopback address, e.g. http://127.0.0.1:8910/callback
	Scopes       []string
	Launcher     BrowserLauncher
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// FederatedGateway implements domain.FederatedAuthenticator via an
// interactive OIDC consent flow: browser launch plus loopback callback.
type FederatedGateway struct {
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	launcher BrowserLauncher
	redirect *url.URL

	mu      sync.Mutex
	pending *pendingFlow
}

// pendingFlow tracks one in-flight consent flow so a superseding SignIn can
// cancel it and release its listener before binding its own.
type pendingFlow struct {
	cancel context.CancelCauseFunc
	server *loopbackServer
}

// errSuperseded marks a flow cancelled by a newer SignIn call.
var errSuperseded = errors.New("sign-in flow superseded")

// NewFederatedGateway performs OIDC discovery and builds the gateway.
func NewFederatedGateway(ctx context.Context, cfg FederatedConfig) (*FederatedGateway, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect URL: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &FederatedGateway{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		launcher: cfg.Launcher,
		redirect: redirect,
	}, nil
}

// callbackResult carries the front-channel outcome back to SignIn.
type callbackResult struct {
	code string
	err  error
}

// SignIn runs the interactive consent flow. A second call while one is in
// flight supersedes the first; the earlier caller gets a
// request-superseded AuthError.
func (g *FederatedGateway) SignIn(ctx context.Context) (*domain.Identity, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	state, err := randomToken(32)
	if err != nil {
		return nil, domain.NewAuthError(domain.AuthUnknown, err)
	}
	nonce, err := randomToken(32)
	if err != nil {
		return nil, domain.NewAuthError(domain.AuthUnknown, err)
	}

	// Cancel any in-flight flow, close its listener, and bind this flow's
	// own in one critical section: the redirect port is fixed, so the old
	// listener must be gone before the new one binds, and no third call may
	// interleave.
	results := make(chan callbackResult, 1)
	g.mu.Lock()
	if prev := g.pending; prev != nil {
		prev.cancel(errSuperseded)
		if prev.server != nil {
			prev.server.Close()
		}
	}
	server, err := g.serveCallback(state, results)
	if err != nil {
		g.mu.Unlock()
		return nil, domain.NewAuthError(domain.AuthTransient, err)
	}
	flow := &pendingFlow{cancel: cancel, server: server}
	g.pending = flow
	g.mu.Unlock()
	defer server.Close()

	// Only clear this flow's own registration: a superseding flow may have
	// replaced it already.
	defer func() {
		g.mu.Lock()
		if g.pending == flow {
			g.pending = nil
		}
		g.mu.Unlock()
	}()

	authURL := g.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	if g.launcher != nil {
		if err := g.launcher(authURL); err != nil {
			return nil, domain.NewAuthError(domain.AuthPopupBlocked, err)
		}
	}

	var code string
	select {
	case <-ctx.Done():
		if errors.Is(context.Cause(ctx), errSuperseded) {
			return nil, domain.NewAuthError(domain.AuthRequestSuperseded, errSuperseded)
		}
		return nil, domain.NewAuthError(domain.AuthUserCancelled, ctx.Err())
	case result := <-results:
		if result.err != nil {
			return nil, result.err
		}
		code = result.code
	}

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, domain.NewAuthError(domain.AuthTransient, err)
	}

	return g.identityFromToken(ctx, token, nonce)
}

// loopbackServer is the short-lived listener for the front-channel redirect.
type loopbackServer struct {
	srv *http.Server
	ln  net.Listener
}

func (s *loopbackServer) Addr() string { return s.ln.Addr().String() }
func (s *loopbackServer) Close() error { return s.srv.Close() }

// serveCallback starts the loopback listener for the front-channel redirect.
func (g *FederatedGateway) serveCallback(state string, results chan<- callbackResult) (*loopbackServer, error) {
	listener, err := net.Listen("tcp", g.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("loopback listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(g.redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			results <- callbackResult{err: translateConsentError(q.Get("error"))}
			http.Error(w, "Sign-in was not completed. You can close this window.", http.StatusBadRequest)
		case q.Get("state") != state:
			results <- callbackResult{err: domain.NewAuthError(domain.AuthUnknown, errors.New("state mismatch"))}
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		default:
			results <- callbackResult{code: q.Get("code")}
			fmt.Fprintln(w, "Signed in. You can close this window.")
		}
	})

	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	return &loopbackServer{srv: server, ln: listener}, nil
}

// identityFromToken verifies the ID token and maps its claims.
func (g *FederatedGateway) identityFromToken(ctx context.Context, token *oauth2.Token, nonce string) (*domain.Identity, error) {
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, domain.NewAuthError(domain.AuthUnknown, errors.New("missing id_token in token response"))
	}

	idToken, err := g.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, domain.NewAuthError(domain.AuthUnknown, fmt.Errorf("verify id_token: %w", err))
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Admin bool   `json:"admin"`
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, domain.NewAuthError(domain.AuthUnknown, fmt.Errorf("parse id_token claims: %w", err))
	}
	if claims.Nonce != nonce {
		return nil, domain.NewAuthError(domain.AuthUnknown, errors.New("invalid nonce"))
	}

	return &domain.Identity{
		UserID:      claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Admin:       claims.Admin,
		CreatedAt:   time.Now(),
	}, nil
}

// translateConsentError maps front-channel error codes onto the closed
// category set.
func translateConsentError(code string) error {
	cause := fmt.Errorf("provider rejected sign-in: %s", code)
	switch code {
	case "access_denied", "popup_closed_by_user":
		return domain.NewAuthError(domain.AuthUserCancelled, cause)
	case "popup_blocked":
		return domain.NewAuthError(domain.AuthPopupBlocked, cause)
	case "cancelled_popup_request":
		return domain.NewAuthError(domain.AuthRequestSuperseded, cause)
	case "temporarily_unavailable", "server_error":
		return domain.NewAuthError(domain.AuthTransient, cause)
	default:
		return domain.NewAuthError(domain.AuthUnknown, cause)
	}
}

// randomToken generates a URL-safe random string for state/nonce values.
func randomToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
