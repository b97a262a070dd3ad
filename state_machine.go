package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	msgSignInFailed         = "Invalid email or password"
	msgSignUpFailed         = "Signup failed. Please try again."
	msgUpdateProfileFailed  = "Failed to update profile"
	msgUpdatePasswordFailed = "Failed to update password"
	msgRestoreFailed        = "Unable to restore your session right now"
	msgRefreshFailed        = "Unable to refresh your session right now"
)

var errSkipCommit = errors.New("skip commit")

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*StateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *StateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish session events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *StateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *StateMachine) {
		sm.provider, sm.logger = ResolveLogger("session.state_machine", sm.provider, logger)
	}
}

// WithStateMachineLoggerProvider resolves the logger from provider.
func WithStateMachineLoggerProvider(provider LoggerProvider) StateMachineOption {
	return func(sm *StateMachine) {
		sm.provider, sm.logger = ResolveLogger("session.state_machine", provider, nil)
	}
}

// WithRetainSessionOnTransientBootstrap keeps the stored token when the
// identity cannot be resolved at startup because of a network or server
// failure. The session moves to StatusError instead of StatusAnonymous and
// can be recovered with RefreshIdentity. Unauthorized failures still sign out.
func WithRetainSessionOnTransientBootstrap() StateMachineOption {
	return func(sm *StateMachine) {
		sm.retainOnTransientBootstrap = true
	}
}

// StateMachine owns the session. It is the only writer of Snapshot values;
// everything else reads copies through Snapshot or Subscribe.
//
// Every request that can change the identity carries a ticket from a
// monotonically increasing sequence. A response is applied only when no
// request issued after it has already been applied, so late responses never
// overwrite newer state.
type StateMachine struct {
	store    Store
	api      AuthAPI
	resolver IdentityResolver

	mu          sync.Mutex
	state       Snapshot
	issued      uint64
	committed   uint64
	subscribers map[uint64]func(Snapshot)
	nextSubID   uint64

	now                        func() time.Time
	activitySink               ActivitySink
	logger                     Logger
	provider                   LoggerProvider
	retainOnTransientBootstrap bool
}

// NewStateMachine creates a state machine in StatusBootstrapping. Call
// Bootstrap once the application starts.
func NewStateMachine(store Store, api AuthAPI, resolver IdentityResolver, opts ...StateMachineOption) *StateMachine {
	if store == nil {
		panic("session: state machine requires a Store")
	}

	sm := &StateMachine{
		store:        store,
		api:          api,
		resolver:     resolver,
		state:        Snapshot{Status: StatusBootstrapping},
		subscribers:  map[uint64]func(Snapshot){},
		now:          time.Now,
		activitySink: noopActivitySink{},
	}
	sm.provider, sm.logger = ResolveLogger("session.state_machine", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Snapshot returns a copy of the current session. It never fails.
func (sm *StateMachine) Snapshot() Snapshot {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.clone()
}

// Subscribe registers fn to receive every new snapshot. The returned function
// removes the subscription.
func (sm *StateMachine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	sm.mu.Lock()
	sm.nextSubID++
	id := sm.nextSubID
	sm.subscribers[id] = fn
	sm.mu.Unlock()

	return func() {
		sm.mu.Lock()
		delete(sm.subscribers, id)
		sm.mu.Unlock()
	}
}

// ClearError drops the last recorded error
func (sm *StateMachine) ClearError() {
	sm.update(context.Background(), 0, false, func(next *Snapshot) error {
		if next.LastError == nil {
			return errSkipCommit
		}
		if next.Status == StatusError {
			return errSkipCommit
		}
		next.LastError = nil
		return nil
	})
}

// Bootstrap reads the stored token and resolves its identity. A missing token
// leads to StatusAnonymous. A token that cannot be resolved is cleared and the
// session is treated as signed out without reporting an error.
func (sm *StateMachine) Bootstrap(ctx context.Context) Snapshot {
	ticket := sm.issue()
	from := sm.Snapshot().Status

	token, ok, err := sm.store.Read(ctx)
	if err != nil {
		sm.logger.Warn("bootstrap could not read session store: %v", err)
		ok = false
	}

	if !ok || token == "" {
		snap, _, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
			setAnonymous(next)
			return nil
		})
		sm.record(ctx, ActivityEvent{
			EventType:  ActivityEventBootstrap,
			FromStatus: from,
			ToStatus:   snap.Status,
			Metadata:   map[string]any{"token": false},
		})
		return snap
	}

	if _, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		next.Status = StatusResolving
		next.Token = token
		next.Identity = nil
		return nil
	}); !applied {
		return sm.Snapshot()
	}

	identity, err := sm.resolve(ctx, token)
	if err != nil {
		return sm.bootstrapFailed(ctx, ticket, token, err)
	}

	snap, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		setActive(next, token, identity)
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, "bootstrap")
		return snap
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventBootstrap,
		UserID:     identity.ID,
		FromStatus: from,
		ToStatus:   snap.Status,
		Metadata:   map[string]any{"token": true},
	})
	return snap
}

func (sm *StateMachine) bootstrapFailed(ctx context.Context, ticket uint64, token string, err error) Snapshot {
	kind := KindOf(err)
	sm.record(ctx, ActivityEvent{
		EventType: ActivityEventIdentityFailure,
		ErrorKind: kind,
		Metadata:  map[string]any{"operation": "bootstrap"},
	})

	if kind == KindTransient && sm.retainOnTransientBootstrap {
		sm.logger.Warn("bootstrap identity resolution failed, keeping session: %v", err)
		snap, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
			next.Status = StatusError
			next.Token = token
			next.Identity = nil
			next.LastError = recordableError(err, msgRestoreFailed)
			return nil
		})
		if !applied {
			sm.discarded(ctx, ticket, "bootstrap")
		}
		return snap
	}

	sm.logger.Info("bootstrap identity resolution failed, treating session as signed out: %v", err)
	return sm.implicitSignOut(ctx, ticket, "bootstrap", err)
}

// SignIn exchanges credentials for a token, persists it and activates the
// session with the identity returned next to the token. On failure the prior
// state is kept, the error is recorded and returned.
func (sm *StateMachine) SignIn(ctx context.Context, form SignInForm) (*Identity, error) {
	if verr := form.Validate(); verr != nil {
		return nil, sm.fail(ctx, 0, ActivityEventSignInFailure, verr, msgSignInFailed)
	}

	if sm.api == nil {
		return nil, sm.fail(ctx, 0, ActivityEventSignInFailure, NewTransientError("auth api not configured", nil), msgSignInFailed)
	}

	ticket := sm.issue()
	from := sm.Snapshot().Status

	result, err := sm.api.SignIn(ctx, form)
	if err == nil && (result == nil || result.Token == "") {
		err = NewTransientError("sign in response did not include a token", nil)
	}
	if err != nil {
		return nil, sm.fail(ctx, ticket, ActivityEventSignInFailure, err, msgSignInFailed)
	}

	identity := result.Identity
	if identity.IsZero() {
		// token only response shape
		identity, err = sm.resolve(ctx, result.Token)
		if err != nil {
			return nil, sm.fail(ctx, ticket, ActivityEventSignInFailure, err, msgSignInFailed)
		}
	}
	identity = identity.Clone().Normalize()

	snap, applied, err := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		if err := sm.store.Write(ctx, result.Token); err != nil {
			return NewTransientError("unable to persist session token", err)
		}
		setActive(next, result.Token, identity)
		return nil
	})
	if err != nil {
		return nil, sm.fail(ctx, ticket, ActivityEventSignInFailure, err, msgSignInFailed)
	}
	if !applied {
		sm.discarded(ctx, ticket, "signin")
		return nil, NewTransientError("sign in was superseded by a newer session change", nil)
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventSignInSuccess,
		UserID:     identity.ID,
		FromStatus: from,
		ToStatus:   snap.Status,
		Metadata:   map[string]any{"role": string(identity.Role)},
	})

	return identity.Clone(), nil
}

// SignUp registers a new account. It does not imply sign-in: when the backend
// returns only the identity the session stays anonymous and, for accounts that
// need approval, the identity is kept as the session enrollment so the guard
// can show the pending screen. When the backend also returns a token the
// session is activated like SignIn does.
func (sm *StateMachine) SignUp(ctx context.Context, form SignUpForm) (*SignUpResult, error) {
	if verr := form.Validate(); verr != nil {
		return nil, sm.fail(ctx, 0, ActivityEventSignUpFailure, verr, msgSignUpFailed)
	}

	if sm.api == nil {
		return nil, sm.fail(ctx, 0, ActivityEventSignUpFailure, NewTransientError("auth api not configured", nil), msgSignUpFailed)
	}

	ticket := sm.issue()
	from := sm.Snapshot().Status

	resp, err := sm.api.SignUp(ctx, form.WithDefaults())
	if err == nil && (resp == nil || resp.Identity.IsZero()) {
		err = NewTransientError("sign up response did not include an identity", ErrIdentityNotFound)
	}
	if err != nil {
		return nil, sm.fail(ctx, ticket, ActivityEventSignUpFailure, err, msgSignUpFailed)
	}

	identity := resp.Identity.Clone().Normalize()
	result := &SignUpResult{
		Identity:         identity.Clone(),
		RequiresApproval: identity.IsPending(),
	}

	var snap Snapshot
	var applied bool
	if resp.Token != "" {
		snap, applied, err = sm.update(ctx, ticket, true, func(next *Snapshot) error {
			if err := sm.store.Write(ctx, resp.Token); err != nil {
				return NewTransientError("unable to persist session token", err)
			}
			setActive(next, resp.Token, identity)
			return nil
		})
		result.SignedIn = applied && err == nil
	} else {
		snap, applied, err = sm.update(ctx, ticket, false, func(next *Snapshot) error {
			next.LastError = nil
			if identity.IsPending() && !next.IsActive() {
				next.Enrollment = identity.Clone()
			}
			return nil
		})
	}
	if err != nil {
		return nil, sm.fail(ctx, ticket, ActivityEventSignUpFailure, err, msgSignUpFailed)
	}
	if !applied {
		sm.discarded(ctx, ticket, "signup")
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventSignUpSuccess,
		UserID:     identity.ID,
		FromStatus: from,
		ToStatus:   snap.Status,
		Metadata: map[string]any{
			"role":              string(identity.Role),
			"signed_in":         result.SignedIn,
			"requires_approval": result.RequiresApproval,
		},
	})

	return result, nil
}

// SignOut clears the persisted token and the identity. It always succeeds and
// is idempotent.
func (sm *StateMachine) SignOut(ctx context.Context) Snapshot {
	var from Status
	var userID string
	snap, _, _ := sm.update(ctx, 0, true, func(next *Snapshot) error {
		from = next.Status
		if next.Identity != nil {
			userID = next.Identity.ID
		}
		if err := sm.store.Clear(ctx); err != nil {
			sm.logger.Error("sign out could not clear session store: %v", err)
		}
		setAnonymous(next)
		next.Enrollment = nil
		return nil
	})

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventSignOut,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   snap.Status,
	})

	return snap
}

// RefreshIdentity resolves the identity again with the stored token without
// changing the status first. Unauthorized failures sign the session out.
// Transient failures keep the session: an active session stays active with
// the error recorded, any other session moves to StatusError.
func (sm *StateMachine) RefreshIdentity(ctx context.Context) error {
	ticket := sm.issue()

	token, ok, err := sm.store.Read(ctx)
	if err != nil {
		terr := NewTransientError("unable to read session store", err)
		return sm.refreshFailed(ctx, ticket, "", terr)
	}
	if !ok || token == "" {
		uerr := NewUnauthorizedError("no session token", ErrNoToken)
		sm.implicitSignOut(ctx, ticket, "refresh", uerr)
		return uerr
	}

	identity, err := sm.resolve(ctx, token)
	if err != nil {
		return sm.refreshFailed(ctx, ticket, token, err)
	}

	var from Status
	snap, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		from = next.Status
		setActive(next, token, identity)
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, "refresh")
		return nil
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventIdentityResolved,
		UserID:     identity.ID,
		FromStatus: from,
		ToStatus:   snap.Status,
		Metadata:   map[string]any{"operation": "refresh"},
	})
	return nil
}

func (sm *StateMachine) refreshFailed(ctx context.Context, ticket uint64, token string, err error) error {
	kind := KindOf(err)
	sm.record(ctx, ActivityEvent{
		EventType: ActivityEventIdentityFailure,
		ErrorKind: kind,
		Metadata:  map[string]any{"operation": "refresh"},
	})

	if kind == KindUnauthorized {
		sm.implicitSignOut(ctx, ticket, "refresh", err)
		return err
	}

	recorded := recordableError(err, msgRefreshFailed)
	_, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		next.LastError = recorded
		if next.IsActive() {
			return nil
		}
		if token == "" {
			token = next.Token
		}
		if token == "" {
			return errSkipCommit
		}
		next.Status = StatusError
		next.Token = token
		next.Identity = nil
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, "refresh")
	}
	return recorded
}

// UpdateProfile sends the profile form and merges the returned identity into
// the session. It requires an active session.
func (sm *StateMachine) UpdateProfile(ctx context.Context, form UpdateProfileForm) (*Identity, error) {
	current := sm.Snapshot()
	if !current.IsActive() {
		return nil, sm.fail(ctx, 0, ActivityEventMutationFailure, NewNotActiveError("update_profile", current.Status), msgUpdateProfileFailed)
	}

	if verr := form.Validate(); verr != nil {
		return nil, sm.fail(ctx, 0, ActivityEventMutationFailure, verr, msgUpdateProfileFailed)
	}

	if sm.api == nil {
		return nil, sm.fail(ctx, 0, ActivityEventMutationFailure, NewTransientError("auth api not configured", nil), msgUpdateProfileFailed)
	}

	ticket := sm.issue()
	updated, err := sm.api.UpdateProfile(ctx, current.Token, form)
	if err != nil {
		if IsUnauthorized(err) {
			sm.implicitSignOut(ctx, ticket, "update_profile", err)
			return nil, err
		}
		return nil, sm.fail(ctx, ticket, ActivityEventMutationFailure, err, msgUpdateProfileFailed)
	}

	var merged *Identity
	_, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		if !next.IsActive() || next.Token != current.Token {
			return errSkipCommit
		}
		merged = next.Identity.Merge(updated)
		next.Identity = merged
		next.LastError = nil
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, "update_profile")
		return current.Identity.Merge(updated), nil
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventProfileUpdated,
		UserID:     merged.ID,
		FromStatus: StatusActive,
		ToStatus:   StatusActive,
	})

	return merged.Clone(), nil
}

// UpdatePassword changes the account password. It has no effect on the
// session besides error bookkeeping and requires an active session.
func (sm *StateMachine) UpdatePassword(ctx context.Context, form UpdatePasswordForm) error {
	current := sm.Snapshot()
	if !current.IsActive() {
		return sm.fail(ctx, 0, ActivityEventMutationFailure, NewNotActiveError("update_password", current.Status), msgUpdatePasswordFailed)
	}

	if verr := form.Validate(); verr != nil {
		return sm.fail(ctx, 0, ActivityEventMutationFailure, verr, msgUpdatePasswordFailed)
	}

	if sm.api == nil {
		return sm.fail(ctx, 0, ActivityEventMutationFailure, NewTransientError("auth api not configured", nil), msgUpdatePasswordFailed)
	}

	ticket := sm.issue()
	if err := sm.api.UpdatePassword(ctx, current.Token, form); err != nil {
		if IsUnauthorized(err) {
			sm.implicitSignOut(ctx, ticket, "update_password", err)
			return err
		}
		return sm.fail(ctx, ticket, ActivityEventMutationFailure, err, msgUpdatePasswordFailed)
	}

	sm.update(ctx, ticket, false, func(next *Snapshot) error {
		if next.LastError == nil || next.Status == StatusError {
			return errSkipCommit
		}
		next.LastError = nil
		return nil
	})

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordUpdated,
		UserID:     current.Identity.ID,
		FromStatus: StatusActive,
		ToStatus:   StatusActive,
	})
	return nil
}

// Authenticated runs fn with the session token for calls made outside the
// state machine (admin operations, for example). It requires an active
// session. An Unauthorized error from fn signs the session out locally; a
// Forbidden one is only logged. fn errors are returned unchanged.
func (sm *StateMachine) Authenticated(ctx context.Context, operation string, fn func(ctx context.Context, token string) error) error {
	current := sm.Snapshot()
	if !current.IsActive() {
		return NewNotActiveError(operation, current.Status)
	}

	ticket := sm.issue()
	err := fn(ctx, current.Token)
	switch KindOf(err) {
	case KindNone:
		return nil
	case KindUnauthorized:
		sm.implicitSignOut(ctx, ticket, operation, err)
	case KindForbidden:
		sm.logger.Warn("%s forbidden for %s: %v", operation, current.Identity.Email, err)
	}
	return err
}

func (sm *StateMachine) resolve(ctx context.Context, token string) (*Identity, error) {
	if sm.resolver == nil {
		return nil, NewTransientError("identity resolver not configured", nil)
	}

	identity, err := sm.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if identity.IsZero() {
		return nil, NewTransientError("identity response was empty", ErrIdentityNotFound)
	}
	return identity.Clone().Normalize(), nil
}

// implicitSignOut tears down a session whose token turned out to be invalid.
// It is not reported to the user as an error.
func (sm *StateMachine) implicitSignOut(ctx context.Context, ticket uint64, operation string, cause error) Snapshot {
	var from Status
	var userID string
	snap, applied, _ := sm.update(ctx, ticket, true, func(next *Snapshot) error {
		from = next.Status
		if next.Identity != nil {
			userID = next.Identity.ID
		}
		if err := sm.store.Clear(ctx); err != nil {
			sm.logger.Error("%s could not clear session store: %v", operation, err)
		}
		setAnonymous(next)
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, operation)
		return snap
	}

	sm.record(ctx, ActivityEvent{
		EventType:  ActivityEventImplicitSignOut,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   snap.Status,
		ErrorKind:  KindOf(cause),
		Metadata:   map[string]any{"operation": operation},
	})
	return snap
}

// fail records err as the last error (unless the request was superseded),
// emits an event and returns the recorded error.
func (sm *StateMachine) fail(ctx context.Context, ticket uint64, event ActivityEventType, err error, fallback string) error {
	recorded := recordableError(err, fallback)

	var status Status
	_, applied, _ := sm.update(ctx, ticket, false, func(next *Snapshot) error {
		status = next.Status
		next.LastError = recorded
		return nil
	})
	if !applied {
		sm.discarded(ctx, ticket, string(event))
	}

	sm.logger.Debug("%s: %v", event, err)
	sm.record(ctx, ActivityEvent{
		EventType:  event,
		FromStatus: status,
		ToStatus:   status,
		ErrorKind:  KindOf(err),
		Metadata:   map[string]any{"message": recorded.Message},
	})

	return recorded
}

func (sm *StateMachine) discarded(ctx context.Context, ticket uint64, operation string) {
	sm.logger.Debug("discarding superseded %s response (ticket %d)", operation, ticket)
	sm.record(ctx, ActivityEvent{
		EventType: ActivityEventResponseDiscarded,
		Metadata: map[string]any{
			"operation": operation,
			"ticket":    ticket,
		},
	})
}

func (sm *StateMachine) issue() uint64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.issued++
	return sm.issued
}

// update applies mutate to a copy of the state when ticket has not been
// superseded by a newer applied request. A zero ticket issues a fresh one.
// When advance is true the ticket becomes the newest applied request, which
// discards every response to older requests. Subscribers are notified
// outside the lock. mutate runs under sm.mu and may write or clear the store,
// so persistence stays ordered with the ticket check; moving that I/O out of
// mutate needs its own ordering.
func (sm *StateMachine) update(ctx context.Context, ticket uint64, advance bool, mutate func(next *Snapshot) error) (Snapshot, bool, error) {
	sm.mu.Lock()
	if ticket == 0 {
		sm.issued++
		ticket = sm.issued
	}

	if ticket < sm.committed {
		snap := sm.state.clone()
		sm.mu.Unlock()
		return snap, false, nil
	}

	next := sm.state
	if err := mutate(&next); err != nil {
		snap := sm.state.clone()
		sm.mu.Unlock()
		if errors.Is(err, errSkipCommit) {
			return snap, false, nil
		}
		return snap, false, err
	}

	from := sm.state.Status
	next.Version = sm.state.Version + 1
	sm.state = next
	if advance {
		sm.committed = ticket
	}

	snap := sm.state.clone()
	subscribers := sm.subscriberList()
	sm.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap.clone())
	}

	if from != snap.Status {
		sm.record(ctx, ActivityEvent{
			EventType:  ActivityEventStatusChanged,
			UserID:     identityID(snap.Identity),
			FromStatus: from,
			ToStatus:   snap.Status,
		})
	}

	return snap, true, nil
}

func (sm *StateMachine) subscriberList() []func(Snapshot) {
	ids := make([]uint64, 0, len(sm.subscribers))
	for id := range sm.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, sm.subscribers[id])
	}
	return out
}

func (sm *StateMachine) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func setAnonymous(next *Snapshot) {
	next.Status = StatusAnonymous
	next.Token = ""
	next.Identity = nil
	next.LastError = nil
}

func setActive(next *Snapshot, token string, identity *Identity) {
	next.Status = StatusActive
	next.Token = token
	next.Identity = identity.Clone()
	next.LastError = nil
	next.Enrollment = nil
}

func identityID(identity *Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}

// LastErrorOf returns the rich error recorded in snap, if any.
func LastErrorOf(snap Snapshot) (*goerrors.Error, bool) {
	return snap.LastError, snap.LastError != nil
}
