package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventStatusChanged     ActivityEventType = "session.status.changed"
	ActivityEventBootstrap         ActivityEventType = "session.bootstrap"
	ActivityEventSignInSuccess     ActivityEventType = "session.signin.success"
	ActivityEventSignInFailure     ActivityEventType = "session.signin.failure"
	ActivityEventSignUpSuccess     ActivityEventType = "session.signup.success"
	ActivityEventSignUpFailure     ActivityEventType = "session.signup.failure"
	ActivityEventSignOut           ActivityEventType = "session.signout"
	ActivityEventImplicitSignOut   ActivityEventType = "session.signout.implicit"
	ActivityEventIdentityResolved  ActivityEventType = "session.identity.resolved"
	ActivityEventIdentityFailure   ActivityEventType = "session.identity.failure"
	ActivityEventResponseDiscarded ActivityEventType = "session.response.discarded"
	ActivityEventProfileUpdated    ActivityEventType = "session.profile.updated"
	ActivityEventPasswordUpdated   ActivityEventType = "session.password.updated"
	ActivityEventMutationFailure   ActivityEventType = "session.mutation.failure"
)

// ActivityEvent captures audit-friendly information about a session change.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromStatus Status
	ToStatus   Status
	ErrorKind  ErrorKind
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks are best effort: failures are logged and never change the session.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to several sinks, returning the first error
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
