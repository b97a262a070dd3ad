package authtest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/authtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func call(t *testing.T, h http.Handler, method, target, token string, body any) (int, map[string]any) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, target, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestSeedAndSignIn(t *testing.T) {
	key := []byte("test-key")
	b := authtest.New(authtest.WithLogger(session.NopLogger{}), authtest.WithSigningKey(key))
	h := b.Handler()

	seeded, err := b.Seed("Ada", "Ada@Example.com", "pw", session.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", seeded.Email)

	status, out := call(t, h, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", out["token_type"])
	assert.Equal(t, "admin", out["role"])

	raw, _ := out["access_token"].(string)
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, claims["sub"])
	assert.Equal(t, "admin", claims["role"])
}

func TestTokenExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := authtest.New(
		authtest.WithLogger(session.NopLogger{}),
		authtest.WithClock(clock.Now),
		authtest.WithTokenTTL(time.Minute),
	)
	h := b.Handler()
	_, err := b.Seed("Ada", "ada@example.com", "pw", session.RoleUser)
	require.NoError(t, err)

	_, out := call(t, h, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "pw"})
	token, _ := out["access_token"].(string)

	status, _ := call(t, h, http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusOK, status)

	clock.Advance(2 * time.Minute)
	status, out = call(t, h, http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Could not validate credentials", out["detail"])
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	b := authtest.New(authtest.WithLogger(session.NopLogger{}))
	h := b.Handler()
	b.FailNext("POST /auth/signup", http.StatusServiceUnavailable, "")

	status, out := call(t, h, http.MethodPost, "/auth/signup", "", map[string]string{"name": "Ada", "email": "ada@example.com", "password": "pw"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), out["detail"])

	status, out = call(t, h, http.MethodPost, "/auth/signup", "", map[string]string{"name": "Ada", "email": "ada@example.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", out["role"])
	assert.Equal(t, 2, b.Hits("POST /auth/signup"))
}

func TestSignUpValidation(t *testing.T) {
	h := authtest.New(authtest.WithLogger(session.NopLogger{})).Handler()

	status, out := call(t, h, http.MethodPost, "/auth/signup", "", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	items, ok := out["detail"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first, _ := items[0].(map[string]any)
	assert.Equal(t, "Field required: name", first["msg"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	b := authtest.New(authtest.WithLogger(session.NopLogger{}))
	h := b.Handler()
	_, err := b.Seed("Grace", "grace@example.com", "pw", session.RoleUser)
	require.NoError(t, err)

	_, out := call(t, h, http.MethodPost, "/auth/signin", "", map[string]string{"email": "grace@example.com", "password": "pw"})
	token, _ := out["access_token"].(string)

	status, out := call(t, h, http.MethodGet, "/users/", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Not enough permissions", out["detail"])

	status, _ = call(t, h, http.MethodGet, "/users/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Equal(t, 2, b.Hits("GET /users"))
}

func TestSetRoleAndRevoke(t *testing.T) {
	b := authtest.New(authtest.WithLogger(session.NopLogger{}))
	h := b.Handler()
	_, err := b.Seed("Linus", "linus@example.com", "pw", session.RolePending)
	require.NoError(t, err)

	status, out := call(t, h, http.MethodPost, "/auth/signin", "", map[string]string{"email": "linus@example.com", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Account pending approval", out["detail"])

	assert.True(t, b.SetRole("linus@example.com", session.RoleUser))
	assert.False(t, b.SetRole("nobody@example.com", session.RoleUser))

	_, out = call(t, h, http.MethodPost, "/auth/signin", "", map[string]string{"email": "linus@example.com", "password": "pw"})
	token, _ := out["access_token"].(string)
	require.NotEmpty(t, token)

	b.Revoke("linus@example.com")
	status, _ = call(t, h, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
