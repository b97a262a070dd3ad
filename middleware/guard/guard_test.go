package guard_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/middleware/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSnapshot(role session.UserRole) session.Snapshot {
	return session.Snapshot{
		Status:   session.StatusActive,
		Token:    "tok",
		Identity: &session.Identity{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: role},
	}
}

func newApp(snap *session.Snapshot, router *session.Router) *fiber.App {
	app := fiber.New()
	app.Use(guard.New(guard.Config{
		Source: guard.SnapshotSourceFunc(func() session.Snapshot { return *snap }),
		Router: router,
		Logger: session.NopLogger{},
	}))

	ok := func(c *fiber.Ctx) error {
		identity, _ := session.IdentityFromContext(c.UserContext())
		name := "anonymous"
		if identity != nil {
			name = identity.Name
		}
		return c.SendString("hello " + name)
	}
	app.Get("/", ok)
	app.Get("/admin/users", ok)
	app.Get("/auth/signin", ok)
	app.Get("/auth/pending", func(c *fiber.Ctx) error { return c.SendString("pending") })
	return app
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestGuardDecisions(t *testing.T) {
	tests := []struct {
		name     string
		snap     session.Snapshot
		target   string
		status   int
		location string
		body     string
	}{
		{
			name:   "loading while bootstrapping",
			snap:   session.Snapshot{Status: session.StatusBootstrapping},
			target: "/",
			status: fiber.StatusServiceUnavailable,
			body:   "Loading session",
		},
		{
			name:     "anonymous redirected to sign in",
			snap:     session.Snapshot{Status: session.StatusAnonymous},
			target:   "/",
			status:   fiber.StatusFound,
			location: "/auth/signin",
		},
		{
			name:   "public route renders for anonymous",
			snap:   session.Snapshot{Status: session.StatusAnonymous},
			target: "/auth/signin",
			status: fiber.StatusOK,
			body:   "hello anonymous",
		},
		{
			name:   "active user renders",
			snap:   activeSnapshot(session.RoleUser),
			target: "/",
			status: fiber.StatusOK,
			body:   "hello Ada",
		},
		{
			name:     "role mismatch redirected home",
			snap:     activeSnapshot(session.RoleUser),
			target:   "/admin/users",
			status:   fiber.StatusFound,
			location: "/",
		},
		{
			name:   "admin renders admin route",
			snap:   activeSnapshot(session.RoleAdmin),
			target: "/admin/users",
			status: fiber.StatusOK,
			body:   "hello Ada",
		},
		{
			name:     "pending account sent to the interstitial",
			snap:     activeSnapshot(session.RolePending),
			target:   "/",
			status:   fiber.StatusFound,
			location: "/auth/pending",
		},
		{
			name:   "pending account sees the interstitial route",
			snap:   activeSnapshot(session.RolePending),
			target: "/auth/pending",
			status: fiber.StatusOK,
			body:   "pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.snap
			app := newApp(&snap, session.NewRouter(nil, session.WithRouterLogger(session.NopLogger{})))

			resp, body := get(t, app, tt.target)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get(fiber.HeaderLocation))
			}
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestGuardRemembersRejectedPath(t *testing.T) {
	snap := session.Snapshot{Status: session.StatusAnonymous}
	router := session.NewRouter(nil, session.WithRouterLogger(session.NopLogger{}))
	app := newApp(&snap, router)

	resp, _ := get(t, app, "/admin/users?page=2")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/users?page=2", router.TakeRedirect())
}

func TestGuardRememberedPathSurvivesLaterRequests(t *testing.T) {
	snap := session.Snapshot{Status: session.StatusAnonymous}
	router := session.NewRouter(nil, session.WithRouterLogger(session.NopLogger{}))
	app := newApp(&snap, router)

	resp, _ := get(t, app, "/admin/users")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/users", router.PeekRedirect())

	resp, body := get(t, app, "/auth/signin")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello anonymous", body)
	get(t, app, "/")

	assert.Equal(t, "/admin/users", router.PeekRedirect())
	assert.Equal(t, "/admin/users", router.TakeRedirect())
}

func TestProtect(t *testing.T) {
	snap := session.Snapshot{Status: session.StatusAnonymous}
	source := guard.SnapshotSourceFunc(func() session.Snapshot { return snap })

	app := fiber.New()
	app.Post("/profile", guard.Protect(source, session.RequireAuthentication(), guard.Config{Logger: session.NopLogger{}}),
		func(c *fiber.Ctx) error {
			got, ok := guard.SnapshotFrom(c)
			require.True(t, ok)
			decision, ok := guard.DecisionFrom(c)
			require.True(t, ok)
			assert.Equal(t, session.OutcomeRender, decision.Outcome)
			return c.SendString(got.Identity.Email)
		})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/profile", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/signin", resp.Header.Get(fiber.HeaderLocation))

	snap = activeSnapshot(session.RoleUser)
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/profile", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", string(body))
}

func TestGuardFilterAndCustomHandlers(t *testing.T) {
	snap := session.Snapshot{Status: session.StatusResolving}

	app := fiber.New()
	app.Use(guard.New(guard.Config{
		Source: guard.SnapshotSourceFunc(func() session.Snapshot { return snap }),
		Logger: session.NopLogger{},
		Filter: func(c *fiber.Ctx) bool { return c.Path() == "/healthz" },
		LoadingHandler: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusAccepted).SendString("wait")
		},
		ContextKey: "current",
	}))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("home") })

	resp, body := get(t, app, "/healthz")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	resp, body = get(t, app, "/")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "wait", body)
}

func TestNewRequiresSource(t *testing.T) {
	assert.Panics(t, func() { guard.New(guard.Config{}) })
}
