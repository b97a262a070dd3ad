package session_test

import (
	"context"
	"sync"

	session "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/mock"
)

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) SignIn(ctx context.Context, form session.SignInForm) (*session.SignInResult, error) {
	args := m.Called(ctx, form)
	if res := args.Get(0); res != nil {
		return res.(*session.SignInResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) SignUp(ctx context.Context, form session.SignUpForm) (*session.SignUpResponse, error) {
	args := m.Called(ctx, form)
	if res := args.Get(0); res != nil {
		return res.(*session.SignUpResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) UpdateProfile(ctx context.Context, token string, form session.UpdateProfileForm) (*session.Identity, error) {
	args := m.Called(ctx, token, form)
	if res := args.Get(0); res != nil {
		return res.(*session.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) UpdatePassword(ctx context.Context, token string, form session.UpdatePasswordForm) error {
	args := m.Called(ctx, token, form)
	return args.Error(0)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, token string) (*session.Identity, error) {
	args := m.Called(ctx, token)
	if res := args.Get(0); res != nil {
		return res.(*session.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

// memStore is a Store that records how often it was written and cleared
type memStore struct {
	mu      sync.Mutex
	token   string
	ok      bool
	writes  int
	clears  int
	readErr error
}

func newMemStore(token string) *memStore {
	return &memStore{token: token, ok: token != ""}
}

func (s *memStore) Read(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	return s.token, s.ok, nil
}

func (s *memStore) Write(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.ok = token, true
	s.writes++
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.ok = "", false
	s.clears++
	return nil
}

func (s *memStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.ok
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []session.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingSink) Count(t session.ActivityEventType) int {
	n := 0
	for _, got := range r.Types() {
		if got == t {
			n++
		}
	}
	return n
}

var (
	adminIdentity = &session.Identity{
		ID:    "u-admin",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  session.RoleAdmin,
	}
	userIdentity = &session.Identity{
		ID:    "u-user",
		Name:  "Grace",
		Email: "grace@example.com",
		Role:  session.RoleUser,
	}
	pendingIdentity = &session.Identity{
		ID:    "u-pending",
		Name:  "Linus",
		Email: "linus@example.com",
		Role:  session.RolePending,
	}
)

func quietOpts(opts ...session.StateMachineOption) []session.StateMachineOption {
	return append([]session.StateMachineOption{
		session.WithStateMachineLogger(session.NopLogger{}),
	}, opts...)
}
