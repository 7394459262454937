package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"maba-auth/internal/domain"

	kratos "github.com/ory/kratos-client-go"
)

// KratosGateway implements domain.IdentityProvider and domain.SessionValidator.
// It drives Kratos native self-service flows and holds the session token
// obtained from the last successful sign-in.
type KratosGateway struct {
	client       *kratos.APIClient
	adminBaseURL string
	httpClient   *http.Client

	mu           sync.Mutex
	sessionToken string
}

// NewKratosGateway creates a new Kratos gateway with tuned HTTP transport.
func NewKratosGateway(baseURL, adminBaseURL string, timeout time.Duration) *KratosGateway {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: baseURL},
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	configuration.HTTPClient = httpClient

	return &KratosGateway{
		client:       kratos.NewAPIClient(configuration),
		adminBaseURL: adminBaseURL,
		httpClient:   httpClient,
	}
}

// CreateAccount registers a new email/password account via the native
// registration flow and holds the resulting session token.
func (g *KratosGateway) CreateAccount(ctx context.Context, email, password string) (*domain.Identity, error) {
	flow, resp, err := g.client.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return nil, translateKratosError(resp, err)
	}

	body := kratos.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(
		&kratos.UpdateRegistrationFlowWithPasswordMethod{
			Method:   "password",
			Password: password,
			Traits:   map[string]interface{}{"email": email},
		})

	result, resp, err := g.client.FrontendAPI.UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(body).
		Execute()
	if err != nil {
		return nil, translateKratosError(resp, err)
	}

	sessionID := ""
	if result.Session != nil {
		sessionID = result.Session.Id
	}
	g.setSessionToken(result.SessionToken)

	return identityFromKratos(&result.Identity, sessionID), nil
}

// Authenticate signs in with email/password via the native login flow.
func (g *KratosGateway) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	flow, resp, err := g.client.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return nil, translateKratosError(resp, err)
	}

	body := kratos.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(
		&kratos.UpdateLoginFlowWithPasswordMethod{
			Method:     "password",
			Identifier: email,
			Password:   password,
		})

	result, resp, err := g.client.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(body).
		Execute()
	if err != nil {
		return nil, translateKratosError(resp, err)
	}

	if result.Session.Identity == nil {
		return nil, domain.ErrMissingIdentity
	}
	g.setSessionToken(result.SessionToken)

	return identityFromKratos(result.Session.Identity, result.Session.Id), nil
}

// SignOut revokes the held session token. Idempotent: no-op without a token,
// and an already-revoked token is treated as success.
func (g *KratosGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	token := g.sessionToken
	g.sessionToken = ""
	g.mu.Unlock()

	if token == "" {
		return nil
	}

	resp, err := g.client.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*kratos.NewPerformNativeLogoutBody(token)).
		Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil
		}
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	return nil
}

// SendPasswordReset starts a recovery flow for the address. Kratos does not
// reveal whether the address is registered; neither does this method.
func (g *KratosGateway) SendPasswordReset(ctx context.Context, email string) error {
	flow, resp, err := g.client.FrontendAPI.CreateNativeRecoveryFlow(ctx).Execute()
	if err != nil {
		return translateKratosError(resp, err)
	}

	body := kratos.UpdateRecoveryFlowWithCodeMethodAsUpdateRecoveryFlowBody(
		&kratos.UpdateRecoveryFlowWithCodeMethod{
			Method: "code",
			Email:  &email,
		})

	_, resp, err = g.client.FrontendAPI.UpdateRecoveryFlow(ctx).
		Flow(flow.Id).
		UpdateRecoveryFlowBody(body).
		Execute()
	if err != nil {
		return translateKratosError(resp, err)
	}
	return nil
}

// CurrentIdentity resolves the identity for the held session token.
// Returns (nil, nil) when no session is active.
func (g *KratosGateway) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	g.mu.Lock()
	token := g.sessionToken
	g.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	session, resp, err := g.client.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, nil
	}
	if session.Identity == nil {
		return nil, domain.ErrMissingIdentity
	}

	return identityFromKratos(session.Identity, session.Id), nil
}

// UpdateDisplayName patches the name trait through the Admin API.
func (g *KratosGateway) UpdateDisplayName(ctx context.Context, userID, name string) error {
	if g.adminBaseURL == "" {
		return domain.ErrAdminNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	patch := []map[string]interface{}{
		{"op": "replace", "path": "/traits/name", "value": name},
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/admin/identities/%s", g.adminBaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json-patch+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: admin API returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

// ValidateSession validates a session cookie and returns the identity.
// Used by the service side; the cookie carries the browser session.
func (g *KratosGateway) ValidateSession(ctx context.Context, cookie string) (*domain.Identity, error) {
	if cookie == "" {
		return nil, domain.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	session, resp, err := g.client.FrontendAPI.ToSession(ctx).Cookie(cookie).Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, domain.ErrAuthFailed
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, domain.ErrSessionInactive
	}
	if session.Identity == nil {
		return nil, domain.ErrMissingIdentity
	}

	return identityFromKratos(session.Identity, session.Id), nil
}

func (g *KratosGateway) setSessionToken(token *string) {
	if token == nil {
		return
	}
	g.mu.Lock()
	g.sessionToken = *token
	g.mu.Unlock()
}

// identityFromKratos maps a Kratos identity into the domain shape.
func identityFromKratos(id *kratos.Identity, sessionID string) *domain.Identity {
	email := ""
	name := ""
	if traits, ok := id.Traits.(map[string]interface{}); ok {
		if v, ok := traits["email"].(string); ok {
			email = v
		}
		if v, ok := traits["name"].(string); ok {
			name = v
		}
	}

	admin := false
	if meta, ok := id.MetadataPublic.(map[string]interface{}); ok {
		if v, ok := meta["admin"].(bool); ok {
			admin = v
		}
	}

	var createdAt time.Time
	if id.CreatedAt != nil {
		createdAt = *id.CreatedAt
	}

	return &domain.Identity{
		UserID:      id.Id,
		Email:       email,
		DisplayName: name,
		SessionID:   sessionID,
		Admin:       admin,
		CreatedAt:   createdAt,
	}
}

// Kratos UI message IDs surfaced by the self-service flows. The raw error
// body is scanned for these; they are stable across Kratos versions.
const (
	kratosMsgInvalidEmail       = "4000001"
	kratosMsgPasswordPolicy     = "4000005"
	kratosMsgInvalidCredentials = "4000006"
	kratosMsgDuplicateAccount   = "4000007"
)

// translateKratosError converts a Kratos rejection into a categorized
// AuthError. This is the single provider-boundary translation point.
func translateKratosError(resp *http.Response, err error) error {
	if resp == nil {
		return domain.NewAuthError(domain.AuthTransient, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.NewAuthError(domain.AuthTransient,
			fmt.Errorf("%w: kratos returned status %d", domain.ErrProviderUnavailable, resp.StatusCode))
	}

	body := ""
	var openAPIErr *kratos.GenericOpenAPIError
	if ok := asOpenAPIError(err, &openAPIErr); ok {
		body = string(openAPIErr.Body())
	}

	switch {
	case strings.Contains(body, kratosMsgDuplicateAccount):
		return domain.NewAuthError(domain.AuthEmailInUse, err)
	case strings.Contains(body, kratosMsgInvalidCredentials):
		return domain.NewAuthError(domain.AuthInvalidCredentials, err)
	case strings.Contains(body, kratosMsgPasswordPolicy),
		strings.Contains(body, "data breaches"),
		strings.Contains(body, "too similar"):
		return domain.NewAuthError(domain.AuthWeakPassword, err)
	case strings.Contains(body, kratosMsgInvalidEmail),
		strings.Contains(body, `is not valid "email"`):
		return domain.NewAuthError(domain.AuthInvalidEmail, err)
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.NewAuthError(domain.AuthInvalidCredentials, err)
	default:
		return domain.NewAuthError(domain.AuthUnknown, err)
	}
}

func asOpenAPIError(err error, target **kratos.GenericOpenAPIError) bool {
	for err != nil {
		if oe, ok := err.(*kratos.GenericOpenAPIError); ok {
			*target = oe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
