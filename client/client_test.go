package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/authtest"
	"github.com/goliatone/go-auth-session/client"
	"github.com/goliatone/go-auth-session/store"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, opts ...authtest.Option) (*authtest.Backend, *client.Client) {
	t.Helper()
	opts = append([]authtest.Option{authtest.WithLogger(session.NopLogger{})}, opts...)
	backend, baseURL := authtest.Serve(t, opts...)
	return backend, client.New(baseURL, client.WithLogger(session.NopLogger{}))
}

func signUp(t *testing.T, c *client.Client, name, email string) *session.Identity {
	t.Helper()
	resp, err := c.SignUp(context.Background(), session.SignUpForm{Name: name, Email: email, Password: "secret"})
	require.NoError(t, err)
	require.NotNil(t, resp.Identity)
	return resp.Identity
}

func signIn(t *testing.T, c *client.Client, email string) string {
	t.Helper()
	res, err := c.SignIn(context.Background(), session.SignInForm{Email: email, Password: "secret"})
	require.NoError(t, err)
	return res.Token
}

func detailOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		detail, _ := richErr.Metadata[session.MetadataDetail].(string)
		return detail
	}
	return ""
}

func TestSignUpPolicy(t *testing.T) {
	_, c := newBackend(t)

	first := signUp(t, c, "Ada", "ada@example.com")
	second := signUp(t, c, "Grace", "grace@example.com")

	assert.Equal(t, session.RoleAdmin, first.Role)
	assert.Equal(t, session.RolePending, second.Role)
	assert.NotEmpty(t, first.ID)
}

func TestSignUpDuplicateEmailIsConflict(t *testing.T) {
	_, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")

	_, err := c.SignUp(context.Background(), session.SignUpForm{Name: "Ada", Email: "ADA@example.com", Password: "x"})
	require.Error(t, err)
	assert.True(t, session.IsConflict(err))
	assert.Equal(t, "Email already registered", session.UserMessage(err, "Signup failed. Please try again."))
}

func TestSignUpWithToken(t *testing.T) {
	_, c := newBackend(t, authtest.WithSignUpToken())

	resp, err := c.SignUp(context.Background(), session.SignUpForm{Name: "Ada", Email: "ada@example.com", Password: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.Identity.Email)
}

func TestSignUpMissingFieldsDetail(t *testing.T) {
	_, c := newBackend(t)

	_, err := c.SignUp(context.Background(), session.SignUpForm{Email: "ada@example.com", Password: "x"})
	require.Error(t, err)
	assert.True(t, session.IsConflict(err))
	assert.Equal(t, "Field required: name", detailOf(err))
}

func TestSignInResponseShapes(t *testing.T) {
	tests := []struct {
		name         string
		opts         []authtest.Option
		withIdentity bool
	}{
		{name: "flat", withIdentity: true},
		{name: "nested", opts: []authtest.Option{authtest.WithNestedSignIn()}, withIdentity: true},
		{name: "token only", opts: []authtest.Option{authtest.WithTokenOnlySignIn()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newBackend(t, tt.opts...)
			signUp(t, c, "Ada", "ada@example.com")

			res, err := c.SignIn(context.Background(), session.SignInForm{Email: "ada@example.com", Password: "secret"})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "bearer", res.TokenType)

			if tt.withIdentity {
				require.NotNil(t, res.Identity)
				assert.Equal(t, session.RoleAdmin, res.Identity.Role)
			} else {
				assert.Nil(t, res.Identity)
			}
		})
	}
}

func TestSignInFailures(t *testing.T) {
	_, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	signUp(t, c, "Linus", "linus@example.com")

	_, err := c.SignIn(context.Background(), session.SignInForm{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, session.IsUnauthorized(err))
	assert.Equal(t, "Incorrect email or password", detailOf(err))

	_, err = c.SignIn(context.Background(), session.SignInForm{Email: "linus@example.com", Password: "secret"})
	require.Error(t, err)
	assert.True(t, session.IsUnauthorized(err))
	assert.Equal(t, "Account pending approval", detailOf(err))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "signin", apiErr.Operation)
}

func TestResolve(t *testing.T) {
	backend, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	token := signIn(t, c, "ada@example.com")

	identity, err := c.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, 1, backend.Hits("GET /users/me"))

	backend.Revoke("ada@example.com")
	_, err = c.Resolve(context.Background(), token)
	assert.True(t, session.IsUnauthorized(err))
	assert.Equal(t, 2, backend.Hits("GET /users/me"))
}

func TestResolveClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   session.ErrorKind
	}{
		{status: http.StatusUnauthorized, kind: session.KindUnauthorized},
		{status: http.StatusForbidden, kind: session.KindUnauthorized},
		{status: http.StatusBadRequest, kind: session.KindTransient},
		{status: http.StatusNotFound, kind: session.KindTransient},
		{status: http.StatusUnprocessableEntity, kind: session.KindTransient},
		{status: http.StatusRequestTimeout, kind: session.KindTransient},
		{status: http.StatusTooManyRequests, kind: session.KindTransient},
		{status: http.StatusInternalServerError, kind: session.KindTransient},
		{status: http.StatusBadGateway, kind: session.KindTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			backend, c := newBackend(t)
			signUp(t, c, "Ada", "ada@example.com")
			token := signIn(t, c, "ada@example.com")

			backend.FailNext("GET /users/me", tt.status, "")
			_, err := c.Resolve(context.Background(), token)
			require.Error(t, err)
			assert.Equal(t, tt.kind, session.KindOf(err))
		})
	}
}

func TestResolveNotFoundKeepsSessionOnBootstrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Not Found"}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithLogger(session.NopLogger{}))
	_, err := c.Resolve(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, session.KindTransient, session.KindOf(err))

	tokens := store.NewMemory()
	require.NoError(t, tokens.Write(context.Background(), "tok"))
	sm := session.NewStateMachine(tokens, c, c,
		session.WithStateMachineLogger(session.NopLogger{}),
		session.WithRetainSessionOnTransientBootstrap(),
	)

	snap := sm.Bootstrap(context.Background())
	assert.Equal(t, session.StatusError, snap.Status)
	stored, ok, err := tokens.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", stored)
}

func TestResolveEmptyTokenSendsNothing(t *testing.T) {
	backend, c := newBackend(t)

	_, err := c.Resolve(context.Background(), "")
	assert.True(t, session.IsUnauthorized(err))
	assert.Zero(t, backend.Hits("GET /users/me"))
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := client.New(url, client.WithLogger(session.NopLogger{}), client.WithTimeout(time.Second))
	_, err := c.Resolve(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, session.IsTransient(err))
}

func TestMalformedBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithLogger(session.NopLogger{}))
	_, err := c.Resolve(context.Background(), "tok")
	assert.True(t, session.IsTransient(err))
}

func TestErrorDetailShapes(t *testing.T) {
	bodies := map[string]string{
		`{"detail": "plain"}`:                          "plain",
		`{"detail": [{"msg": "a"}, {"message": "b"}]}`: "a; b",
		`{"message": "from message"}`:                  "from message",
		`{"error": "from error"}`:                      "from error",
		`not json`:                                     "",
	}

	for body, want := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(body))
		}))

		c := client.New(srv.URL, client.WithLogger(session.NopLogger{}))
		_, err := c.SignIn(context.Background(), session.SignInForm{Email: "a@example.com", Password: "x"})
		assert.Equal(t, want, detailOf(err), body)
		srv.Close()
	}
}

func TestUpdateProfileAndPassword(t *testing.T) {
	_, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	token := signIn(t, c, "ada@example.com")

	updated, err := c.UpdateProfile(context.Background(), token, session.UpdateProfileForm{Name: "Ada L.", ProfileImageURL: "https://img/ada.png"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, "https://img/ada.png", updated.ProfileImageURL)

	err = c.UpdatePassword(context.Background(), token, session.UpdatePasswordForm{Password: "wrong", NewPassword: "new"})
	require.Error(t, err)
	assert.True(t, session.IsConflict(err))
	assert.Equal(t, "Incorrect password", detailOf(err))

	require.NoError(t, c.UpdatePassword(context.Background(), token, session.UpdatePasswordForm{Password: "secret", NewPassword: "new"}))
	_, err = c.SignIn(context.Background(), session.SignInForm{Email: "ada@example.com", Password: "new"})
	assert.NoError(t, err)
}

func TestCustomEndpoints(t *testing.T) {
	backend, baseURL := authtest.Serve(t, authtest.WithLogger(session.NopLogger{}))
	c := client.New(baseURL,
		client.WithLogger(session.NopLogger{}),
		client.WithEndpoints(client.Endpoints{SignIn: "/auth/signin", Me: "/auth/me"}),
	)

	assert.Equal(t, "/auth/signin", c.Endpoints().SignIn)
	assert.Equal(t, "/users/profile", c.Endpoints().Profile)

	signUp(t, c, "Ada", "ada@example.com")
	token := signIn(t, c, "ada@example.com")
	_, err := c.Resolve(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.Hits("POST /auth/signin"))
	assert.Equal(t, 1, backend.Hits("GET /auth/me"))
	assert.Zero(t, backend.Hits("POST /auth/login"))
}

func TestDefaultSignInUsesLoginPath(t *testing.T) {
	backend, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	signIn(t, c, "ada@example.com")

	assert.Equal(t, 1, backend.Hits("POST /auth/login"))
	assert.Zero(t, backend.Hits("POST /auth/signin"))
}

func TestNewDefaults(t *testing.T) {
	c := client.New("")
	assert.Equal(t, client.DefaultBaseURL, c.BaseURL())
	assert.Equal(t, client.DefaultEndpoints(), c.Endpoints())
}
