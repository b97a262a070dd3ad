package session

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// PendingMessage is shown to accounts awaiting approval
const PendingMessage = "Your account is awaiting approval by an administrator. Check again once you have been approved."

// DefaultPendingPollInterval is the minimum time between two approval checks
const DefaultPendingPollInterval = 5 * time.Second

// PendingView is what the pending approval screen displays
type PendingView struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	SignedIn bool   `json:"signed_in"`
}

// PendingOption customizes a PendingInterstitial
type PendingOption func(*PendingInterstitial)

// WithPendingPollInterval sets the minimum delay between approval checks
func WithPendingPollInterval(every time.Duration) PendingOption {
	return func(p *PendingInterstitial) {
		if every > 0 {
			p.limiter = rate.NewLimiter(rate.Every(every), 1)
		}
	}
}

// WithPendingLimiter uses a custom limiter for Poll
func WithPendingLimiter(limiter *rate.Limiter) PendingOption {
	return func(p *PendingInterstitial) {
		if limiter != nil {
			p.limiter = limiter
		}
	}
}

// WithPendingLogger sets the logger
func WithPendingLogger(logger Logger) PendingOption {
	return func(p *PendingInterstitial) {
		_, p.logger = ResolveLogger("session.pending", nil, logger)
	}
}

// PendingInterstitial drives the screen shown to authenticated accounts that
// are not approved yet. It only changes the session through the StateMachine.
type PendingInterstitial struct {
	sm      *StateMachine
	router  *Router
	limiter *rate.Limiter
	logger  Logger
}

// NewPendingInterstitial creates the interstitial. A nil router uses the
// default route table.
func NewPendingInterstitial(sm *StateMachine, router *Router, opts ...PendingOption) *PendingInterstitial {
	if router == nil {
		router = NewRouter(nil)
	}

	p := &PendingInterstitial{
		sm:      sm,
		router:  router,
		limiter: rate.NewLimiter(rate.Every(DefaultPendingPollInterval), 1),
	}
	_, p.logger = ResolveLogger("session.pending", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// View returns the data to display. ok is false when the session is not
// waiting for approval.
func (p *PendingInterstitial) View() (view PendingView, ok bool) {
	snap := p.sm.Snapshot()
	if !snap.IsPending() {
		return PendingView{}, false
	}

	identity := snap.Identity
	if identity == nil {
		identity = snap.Enrollment
	}

	return PendingView{
		Name:     identity.Name,
		Email:    identity.Email,
		Message:  PendingMessage,
		SignedIn: snap.IsActive(),
	}, true
}

// Decision evaluates the current session for the pending screen without
// contacting the backend.
func (p *PendingInterstitial) Decision() Decision {
	return p.land(p.sm.Snapshot())
}

// CheckAgain resolves the identity again and evaluates the result: an
// approved account is sent to the page it originally asked for, a signed out
// one to sign-in, and a still pending one stays on the interstitial.
func (p *PendingInterstitial) CheckAgain(ctx context.Context) Decision {
	snap := p.sm.Snapshot()
	if snap.HasToken() {
		if err := p.sm.RefreshIdentity(ctx); err != nil {
			p.logger.Info("approval check failed: %v", err)
		}
	} else {
		p.sm.Bootstrap(ctx)
	}
	return p.land(p.sm.Snapshot())
}

// SignOut leaves the pending flow
func (p *PendingInterstitial) SignOut(ctx context.Context) Decision {
	p.sm.SignOut(ctx)
	return Decision{
		Outcome:  OutcomeRedirect,
		Location: p.router.Config().GetSignInRoute(),
		Reason:   ReasonAnonymous,
	}
}

// Poll repeats CheckAgain, throttled by the poll limiter, until the account
// is no longer pending or ctx is done.
func (p *PendingInterstitial) Poll(ctx context.Context) (Decision, error) {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.Decision(), err
		}

		decision := p.CheckAgain(ctx)
		if decision.Outcome != OutcomeInterstitial {
			return decision, nil
		}

		if !p.sm.Snapshot().HasToken() {
			// enrolled without a token: only a sign-in can change the outcome
			return decision, nil
		}
	}
}

func (p *PendingInterstitial) land(snap Snapshot) Decision {
	decision := p.router.Guard().Evaluate(snap, RequireAuthentication())
	if decision.Outcome != OutcomeRender {
		return decision
	}
	return Decision{
		Outcome:  OutcomeRedirect,
		Location: p.router.TakeRedirect(),
		Reason:   ReasonAllowed,
	}
}
