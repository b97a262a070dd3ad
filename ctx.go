package session

import "context"

var snapshotCtxKey = &contextKey{"session"}
var decisionCtxKey = &contextKey{"decision"}

type contextKey struct {
	name string
}

// WithSnapshot sets the session Snapshot in the given context
func WithSnapshot(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey, snap.clone())
}

// SnapshotFromContext finds the session Snapshot in the context
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	raw, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	if !ok {
		return Snapshot{}, false
	}
	return raw.clone(), true
}

// IdentityFromContext returns the active identity stored in the context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	snap, ok := SnapshotFromContext(ctx)
	if !ok || !snap.IsActive() {
		return nil, false
	}
	return snap.Identity, true
}

// WithDecision sets the guard Decision in the given context
func WithDecision(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, decisionCtxKey, decision)
}

// DecisionFromContext finds the guard Decision in the context
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	raw, ok := ctx.Value(decisionCtxKey).(Decision)
	return raw, ok
}

// HasRole is a convenience to check the identity role from the context
func HasRole(ctx context.Context, role UserRole) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.IsPending() {
		return false
	}
	return identity.IsAtLeast(role)
}
