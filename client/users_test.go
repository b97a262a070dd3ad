package client_test

import (
	"context"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersAdminOperations(t *testing.T) {
	backend, c := newBackend(t)
	admin := signUp(t, c, "Ada", "ada@example.com")
	pending := signUp(t, c, "Linus", "linus@example.com")
	token := signIn(t, c, "ada@example.com")
	ctx := context.Background()

	users, err := c.Users.List(ctx, token, nil)
	require.NoError(t, err)
	require.Len(t, users, 2)

	paged, err := c.Users.List(ctx, token, &client.ListOptions{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)

	approved, err := c.Users.UpdateRole(ctx, token, pending.ID, session.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, session.RoleUser, approved.Role)

	identity, ok := backend.Lookup("linus@example.com")
	require.True(t, ok)
	assert.Equal(t, session.RoleUser, identity.Role)

	added, err := c.Users.Add(ctx, token, client.AddUserRequest{Name: "Grace", Email: "grace@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleUser, added.Role)

	err = c.Users.Delete(ctx, token, admin.ID)
	require.Error(t, err)
	assert.True(t, session.IsConflict(err))
	assert.Equal(t, "Cannot delete your own account", detailOf(err))

	require.NoError(t, c.Users.Delete(ctx, token, added.ID))
	_, ok = backend.Lookup("grace@example.com")
	assert.False(t, ok)
}

func TestUsersForbiddenForRegularUser(t *testing.T) {
	backend, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	signUp(t, c, "Grace", "grace@example.com")
	require.True(t, backend.SetRole("grace@example.com", session.RoleUser))
	token := signIn(t, c, "grace@example.com")

	_, err := c.Users.List(context.Background(), token, nil)
	require.Error(t, err)
	assert.True(t, session.IsForbidden(err))
	assert.Equal(t, "Not enough permissions", detailOf(err))
}

func TestUsersValidation(t *testing.T) {
	backend, c := newBackend(t)

	_, err := c.Users.UpdateRole(context.Background(), "tok", "id", "root")
	assert.True(t, session.IsValidation(err))

	_, err = c.Users.Add(context.Background(), "tok", client.AddUserRequest{Name: "x", Email: "nope", Password: "pw", Role: "root"})
	assert.True(t, session.IsValidation(err))

	assert.Zero(t, backend.Hits("PUT /users/id/role"))
	assert.Zero(t, backend.Hits("POST /users"))
}

func TestUsersUnknownAccount(t *testing.T) {
	_, c := newBackend(t)
	signUp(t, c, "Ada", "ada@example.com")
	token := signIn(t, c, "ada@example.com")

	_, err := c.Users.UpdateRole(context.Background(), token, "missing", session.RoleUser)
	require.Error(t, err)
	assert.Equal(t, "User not found", detailOf(err))
}
