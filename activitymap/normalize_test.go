package activitymap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := session.ActivityEvent{
		EventType:  session.ActivityEventStatusChanged,
		UserID:     "user-100",
		FromStatus: session.StatusResolving,
		ToStatus:   session.StatusActive,
		Metadata:   map[string]any{"operation": "signin"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(session.ActivityEventStatusChanged), out.Verb)
	assert.Equal(t, "session", out.ObjectType)
	assert.Equal(t, "session", out.Channel)
	assert.Empty(t, out.ObjectID)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "signin", out.Metadata["operation"])
	assert.Equal(t, "resolving", out.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, "active", out.Metadata[activitymap.MetadataKeyToStatus])
	assert.NotContains(t, out.Metadata, activitymap.MetadataKeyErrorKind)

	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	event := session.ActivityEvent{
		EventType: session.ActivityEventSignInFailure,
		ErrorKind: session.KindUnauthorized,
		Metadata:  map[string]any{"email": "ada@example.com"},
	}

	out := activitymap.Normalize(event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectID("ignored"),
		activitymap.WithObjectIDResolver(func(e session.ActivityEvent) string {
			v, _ := e.Metadata["email"].(string)
			return v
		}),
		activitymap.WithClock(func() time.Time { return now }),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "ada@example.com", out.ObjectID)
	assert.Equal(t, "unauthorized", out.Metadata[activitymap.MetadataKeyErrorKind])
	assert.True(t, out.OccurredAt.Equal(now))
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "anonymous", activitymap.Normalize(session.ActivityEvent{}).ActorID)
	assert.Equal(t, "cli", activitymap.Normalize(session.ActivityEvent{}, activitymap.WithActorFallback("cli")).ActorID)
	assert.Nil(t, activitymap.Normalize(session.ActivityEvent{}).Metadata)
}

func TestJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := activitymap.NewJSONLines(&buf, activitymap.WithObjectID("laptop"))

	require.NoError(t, sink.Record(context.Background(), session.ActivityEvent{EventType: session.ActivityEventSignOut, UserID: "u1"}))
	require.NoError(t, sink.Record(context.Background(), session.ActivityEvent{EventType: session.ActivityEventBootstrap}))

	dec := json.NewDecoder(&buf)
	var first, second activitymap.Normalized
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	assert.Equal(t, "session.signout", first.Verb)
	assert.Equal(t, "u1", first.ActorID)
	assert.Equal(t, "laptop", first.ObjectID)
	assert.Equal(t, "anonymous", second.ActorID)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONLinesWriteError(t *testing.T) {
	t.Parallel()

	err := activitymap.NewJSONLines(failingWriter{}).Record(context.Background(), session.ActivityEvent{EventType: session.ActivityEventSignOut})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not write activity record")
}
