package session_test

import (
	"encoding/json"
	"testing"
	"time"

	session "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityUnmarshalNormalizesRole(t *testing.T) {
	var identity session.Identity
	err := json.Unmarshal([]byte(`{
		"id": "7f0c",
		"name": "Ada",
		"email": "ada@example.com",
		"role": "owner",
		"profile_image_url": "/user.png",
		"created_at": 1700000000,
		"settings": {"theme": "dark"}
	}`), &identity)
	require.NoError(t, err)

	assert.Equal(t, session.RolePending, identity.Role)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), identity.Created())
	assert.True(t, identity.LastActive().IsZero())
	assert.Equal(t, "dark", identity.Settings["theme"])
}

func TestIdentityCloneIsDeep(t *testing.T) {
	active := true
	original := &session.Identity{
		ID:       "1",
		Email:    "a@example.com",
		Role:     session.RoleUser,
		Settings: map[string]any{"theme": "dark"},
		IsActive: &active,
	}

	clone := original.Clone()
	clone.Settings["theme"] = "light"
	*clone.IsActive = false

	assert.Equal(t, "dark", original.Settings["theme"])
	assert.True(t, *original.IsActive)

	var nilIdentity *session.Identity
	assert.Nil(t, nilIdentity.Clone())
	assert.True(t, nilIdentity.IsZero())
}

func TestIdentityMerge(t *testing.T) {
	base := &session.Identity{ID: "1", Name: "Ada", Email: "ada@example.com", Role: session.RoleAdmin}
	merged := base.Merge(&session.Identity{Name: "Ada L.", Role: "bogus"})

	assert.Equal(t, "Ada L.", merged.Name)
	assert.Equal(t, "ada@example.com", merged.Email)
	assert.Equal(t, session.RolePending, merged.Role)
	assert.Equal(t, "Ada", base.Name)

	assert.Equal(t, "Ada", base.Merge(nil).Name)
}

func TestIdentityRoleChecks(t *testing.T) {
	assert.True(t, adminIdentity.HasRole(session.RoleAdmin))
	assert.True(t, adminIdentity.IsAtLeast(session.RoleUser))
	assert.False(t, userIdentity.IsAtLeast(session.RoleAdmin))
	assert.True(t, pendingIdentity.IsPending())
}
