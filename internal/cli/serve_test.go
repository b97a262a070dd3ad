package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/authtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenField = regexp.MustCompile(`name="_token" value="([^"]+)"`)

func newWebApp(t *testing.T) (*authtest.Backend, *app, *fiber.App) {
	t.Helper()
	backend, apiURL := authtest.Serve(t, authtest.WithLogger(session.NopLogger{}))

	var out, errOut bytes.Buffer
	a, err := newApp(context.Background(), &Config{
		APIURL:  apiURL,
		Store:   StoreMemory,
		Timeout: 5 * time.Second,
		Serve:   ServeConfig{Listen: "127.0.0.1:0", Metrics: true},
	}, &out, &errOut)
	require.NoError(t, err)
	t.Cleanup(a.close)

	return backend, a, a.webApp()
}

func request(t *testing.T, srv *fiber.App, method, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}
	resp, err := srv.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func csrfToken(t *testing.T, page string) string {
	t.Helper()
	m := tokenField.FindStringSubmatch(page)
	require.Len(t, m, 2, "page has no csrf field")
	return m[1]
}

func TestWebLoadingBeforeBootstrap(t *testing.T) {
	_, _, srv := newWebApp(t)

	resp, body := request(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "aria-busy")
}

func TestWebSignInFlow(t *testing.T) {
	backend, a, srv := newWebApp(t)
	_, err := backend.Seed("Ada", "ada@example.com", "secret", session.RoleAdmin)
	require.NoError(t, err)
	a.sm.Bootstrap(context.Background())

	resp, _ := request(t, srv, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/signin", resp.Header.Get(fiber.HeaderLocation))

	_, page := request(t, srv, http.MethodGet, "/auth/signin", nil)
	token := csrfToken(t, page)

	resp, _ = request(t, srv, http.MethodPost, "/auth/signin", url.Values{
		"email":    {"ada@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, page = request(t, srv, http.MethodPost, "/auth/signin", url.Values{
		"_token":   {token},
		"email":    {"ada@example.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, page, "Incorrect email or password")

	resp, _ = request(t, srv, http.MethodPost, "/auth/signin", url.Values{
		"_token":   {token},
		"email":    {"ada@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/users", resp.Header.Get(fiber.HeaderLocation))

	resp, page = request(t, srv, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "<td>ada@example.com</td>")

	resp, _ = request(t, srv, http.MethodPost, "/auth/signout", url.Values{"_token": {token}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.False(t, a.sm.Snapshot().HasToken())
}

func TestWebPendingSignUp(t *testing.T) {
	backend, a, srv := newWebApp(t)
	_, err := backend.Seed("Ada", "ada@example.com", "secret", session.RoleAdmin)
	require.NoError(t, err)
	a.sm.Bootstrap(context.Background())

	_, page := request(t, srv, http.MethodGet, "/auth/signup", nil)
	resp, _ := request(t, srv, http.MethodPost, "/auth/signup", url.Values{
		"_token":   {csrfToken(t, page)},
		"name":     {"Linus"},
		"email":    {"linus@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/pending", resp.Header.Get(fiber.HeaderLocation))

	resp, page = request(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/pending", resp.Header.Get(fiber.HeaderLocation))

	resp, page = request(t, srv, http.MethodGet, "/auth/pending", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "linus@example.com")
}

func TestWebMetrics(t *testing.T) {
	_, a, srv := newWebApp(t)
	a.sm.Bootstrap(context.Background())

	resp, body := request(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `session_status{status="anonymous"} 1`)
}
