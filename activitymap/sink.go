package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	session "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

// JSONLines is a session.ActivitySink that writes one normalized JSON record
// per event to w
type JSONLines struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ session.ActivitySink = (*JSONLines)(nil)

// NewJSONLines creates a sink writing to w. opts apply to every record.
func NewJSONLines(w io.Writer, opts ...Option) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w), opts: opts}
}

// Record implements session.ActivitySink
func (s *JSONLines) Record(_ context.Context, event session.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not write activity record").
			WithMetadata(map[string]any{"verb": record.Verb})
	}
	return nil
}
