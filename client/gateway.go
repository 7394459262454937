package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"maba-auth/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	// CSRFHeader carries the anti-forgery token on guarded requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFBodyField is the body field mirrored into JSON and form payloads.
	CSRFBodyField = "csrfToken"
	// TokenPath is the token-issuing endpoint on the auth service.
	TokenPath = "/api/csrf-token"
)

// SessionSource exposes the current identity; satisfied by *Controller.
type SessionSource interface {
	CurrentIdentity() *domain.Identity
}

// SecureGateway attaches a session-bound anti-forgery token to mutating
// requests and recovers once from a stale-token rejection. The token is
// fetched lazily, cached, and only while an identity is present.
type SecureGateway struct {
	session SessionSource
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
	group singleflight.Group
}

// NewSecureGateway builds a gateway against the auth service at baseURL.
// When httpClient is nil a cookie-jar client is created so the ambient
// session cookie rides along with every call.
func NewSecureGateway(session SessionSource, baseURL string, httpClient *http.Client, logger *slog.Logger) *SecureGateway {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}
	return &SecureGateway{
		session: session,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

// Token returns the cached anti-forgery token, fetching it when absent.
// Concurrent first-time callers share a single in-flight fetch. Returns
// domain.ErrSessionNotFound while anonymous: the token is session-bound and
// is never requested without an identity.
func (g *SecureGateway) Token(ctx context.Context) (string, error) {
	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	if g.session.CurrentIdentity() == nil {
		return "", domain.ErrSessionNotFound
	}

	v, err, _ := g.group.Do("token", func() (any, error) {
		return g.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh drops the cached token and fetches a fresh one, for callers that
// detect staleness through other signals. The in-flight fetch group is
// forgotten first so the refresh never joins a fetch that started before the
// invalidation and hands back the token just judged stale.
func (g *SecureGateway) Refresh(ctx context.Context) (string, error) {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
	g.group.Forget("token")
	return g.Token(ctx)
}

// Headers returns the base header set for guarded calls: the JSON content
// type, plus the anti-forgery header once a token is cached.
func (g *SecureGateway) Headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")

	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token != "" {
		h.Set(CSRFHeader, token)
	}
	return h
}

// Do issues a guarded request. The token is ensured first, merged into the
// headers (caller headers win on conflict) and into JSON or form bodies of
// mutating requests. A response of 403 Forbidden triggers exactly one token
// refresh and retry; the second response is returned as-is either way.
func (g *SecureGateway) Do(ctx context.Context, method, requestURL string, body []byte, header http.Header) (*http.Response, error) {
	token, err := g.Token(ctx)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		// Proceed unguarded; the server-side rejection drives the retry path.
		g.logger.WarnContext(ctx, "csrf token unavailable", "error", err)
	}

	resp, err := g.send(ctx, method, requestURL, body, header, token)
	if err != nil {
		g.logger.ErrorContext(ctx, "guarded request failed", "method", method, "url", requestURL, "error", err)
		return nil, err
	}

	if !isStaleTokenRejection(resp) {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token, err = g.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = g.send(ctx, method, requestURL, body, header, token)
	if err != nil {
		g.logger.ErrorContext(ctx, "guarded request retry failed", "method", method, "url", requestURL, "error", err)
		return nil, err
	}
	return resp, nil
}

// send builds and issues one attempt with the given token.
func (g *SecureGateway) send(ctx context.Context, method, requestURL string, body []byte, header http.Header, token string) (*http.Response, error) {
	payload := body
	if token != "" && isMutating(method) && len(body) > 0 {
		payload = injectToken(body, contentType(header), token)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header = g.Headers()
	if token != "" {
		req.Header.Set(CSRFHeader, token)
	}
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return g.client.Do(req)
}

// fetchToken calls the token-issuing endpoint with ambient credentials.
func (g *SecureGateway) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+TokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTokenFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTokenFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrTokenFetch, resp.StatusCode)
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTokenFetch, err)
	}

	g.mu.Lock()
	g.token = payload.CSRFToken
	g.mu.Unlock()
	return payload.CSRFToken, nil
}

// isStaleTokenRejection matches the exact server signal for an invalid
// token: 403 with the Forbidden status line. Any other 403 passes through.
func isStaleTokenRejection(resp *http.Response) bool {
	return resp.StatusCode == http.StatusForbidden &&
		strings.HasSuffix(resp.Status, "Forbidden")
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func contentType(header http.Header) string {
	if header != nil {
		if ct := header.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "application/json"
}

// injectToken mirrors the token into the request body: a csrfToken member
// for JSON objects, a csrfToken field for form encodings. Bodies that do not
// parse are sent unchanged; the header still carries the token.
func injectToken(body []byte, ct, token string) []byte {
	switch {
	case strings.HasPrefix(ct, "application/json"):
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return body
		}
		obj[CSRFBodyField] = token
		out, err := json.Marshal(obj)
		if err != nil {
			return body
		}
		return out
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return body
		}
		values.Set(CSRFBodyField, token)
		return []byte(values.Encode())
	default:
		return body
	}
}
