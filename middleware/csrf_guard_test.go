package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"maba-auth/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts a single session/token pair.
type stubVerifier struct {
	sessionID string
	token     string
}

func (s *stubVerifier) Generate(string) (string, error) { return s.token, nil }

func (s *stubVerifier) Verify(sessionID, token string) error {
	if sessionID == s.sessionID && token == s.token {
		return nil
	}
	return domain.ErrCSRFTokenInvalid
}

func runGuard(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	guard := CSRFGuard(&stubVerifier{sessionID: "session-abc", token: "valid-token"})
	handler := guard(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestCSRFGuard_SafeMethodsPass(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		req := httptest.NewRequest(method, "/api/session", nil)
		rec, err := runGuard(t, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}
}

func TestCSRFGuard_HeaderToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
	req.Header.Set("Cookie", "ory_kratos_session=session-abc")
	req.Header.Set(csrfHeader, "valid-token")

	rec, err := runGuard(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFGuard_JSONBodyToken(t *testing.T) {
	body := `{"modulesCompleted":1,"csrfToken":"valid-token"}`
	req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body))
	req.Header.Set("Cookie", "ory_kratos_session=session-abc")
	req.Header.Set("Content-Type", "application/json")

	rec, err := runGuard(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFGuard_FormBodyToken(t *testing.T) {
	body := "modulesCompleted=1&csrfToken=valid-token"
	req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body))
	req.Header.Set("Cookie", "ory_kratos_session=session-abc")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec, err := runGuard(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFGuard_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
	req.Header.Set("Cookie", "ory_kratos_session=session-abc")

	_, err := runGuard(t, req)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
	assert.Equal(t, "Forbidden", httpErr.Message)
}

func TestCSRFGuard_InvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
	req.Header.Set("Cookie", "ory_kratos_session=session-abc")
	req.Header.Set(csrfHeader, "stale-token")

	_, err := runGuard(t, req)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestCSRFGuard_TokenBoundToSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
	req.Header.Set("Cookie", "ory_kratos_session=other-session")
	req.Header.Set(csrfHeader, "valid-token")

	_, err := runGuard(t, req)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestCSRFGuard_NoSessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
	req.Header.Set(csrfHeader, "valid-token")

	_, err := runGuard(t, req)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
