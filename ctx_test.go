package session_test

import (
	"context"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotContext(t *testing.T) {
	ctx := session.WithSnapshot(context.Background(), active(adminIdentity))

	snap, ok := session.SnapshotFromContext(ctx)
	require.True(t, ok)
	snap.Identity.Name = "changed"

	identity, ok := session.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, adminIdentity.Name, identity.Name)

	assert.True(t, session.HasRole(ctx, session.RoleUser))
	assert.True(t, session.HasRole(ctx, session.RoleAdmin))
}

func TestContextWithoutSession(t *testing.T) {
	_, ok := session.SnapshotFromContext(context.Background())
	assert.False(t, ok)

	_, ok = session.IdentityFromContext(context.Background())
	assert.False(t, ok)
	assert.False(t, session.HasRole(context.Background(), session.RolePending))
}

func TestHasRoleRejectsPendingAccounts(t *testing.T) {
	ctx := session.WithSnapshot(context.Background(), active(pendingIdentity))
	assert.False(t, session.HasRole(ctx, session.RolePending))
}

func TestDecisionContext(t *testing.T) {
	decision := session.Decision{Outcome: session.OutcomeRender, Reason: session.ReasonAllowed}
	ctx := session.WithDecision(context.Background(), decision)

	got, ok := session.DecisionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, decision, got)
}
