package client_test

import (
	"context"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycleAgainstBackend(t *testing.T) {
	backend, c := newBackend(t)
	ctx := context.Background()
	opts := []session.StateMachineOption{session.WithStateMachineLogger(session.NopLogger{})}

	adminStore := store.NewMemory()
	adminSM := session.NewStateMachine(adminStore, c, c, opts...)
	adminSM.Bootstrap(ctx)

	_, err := adminSM.SignUp(ctx, session.SignUpForm{Name: "Ada", Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	_, err = adminSM.SignIn(ctx, session.SignInForm{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	router := session.NewRouter(nil, session.WithRouterLogger(session.NopLogger{}))
	assert.Equal(t, session.OutcomeRender, router.Decide(adminSM.Snapshot(), "/admin/users").Outcome)

	userStore := store.NewMemory()
	userSM := session.NewStateMachine(userStore, c, c, opts...)
	userSM.Bootstrap(ctx)

	result, err := userSM.SignUp(ctx, session.SignUpForm{Name: "Linus", Email: "linus@example.com", Password: "secret"})
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	assert.Equal(t, session.OutcomeInterstitial, router.Decide(userSM.Snapshot(), "/").Outcome)

	_, err = userSM.SignIn(ctx, session.SignInForm{Email: "linus@example.com", Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, "Account pending approval", userSM.Snapshot().ErrorMessage())

	err = adminSM.Authenticated(ctx, "admin.users.role", func(ctx context.Context, token string) error {
		_, err := c.Users.UpdateRole(ctx, token, result.Identity.ID, session.RoleUser)
		return err
	})
	require.NoError(t, err)

	identity, err := userSM.SignIn(ctx, session.SignInForm{Email: "linus@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleUser, identity.Role)
	assert.Equal(t, session.OutcomeRender, router.Decide(userSM.Snapshot(), "/").Outcome)
	assert.Equal(t, session.ReasonRoleMismatch, router.Decide(userSM.Snapshot(), "/admin/users").Reason)

	backend.Revoke("linus@example.com")
	err = userSM.RefreshIdentity(ctx)
	assert.True(t, session.IsUnauthorized(err))
	assert.Equal(t, session.StatusAnonymous, userSM.Snapshot().Status)
	_, ok, _ := userStore.Read(ctx)
	assert.False(t, ok)

	restarted := session.NewStateMachine(adminStore, c, c, opts...)
	assert.True(t, restarted.Bootstrap(ctx).IsActive())
}
