// Package guard applies session route decisions to fiber requests. It only
// shapes navigation; the backend still has to authorize every API call.
package guard

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	session "github.com/goliatone/go-auth-session"
)

const (
	// DefaultContextKey is the fiber Locals key holding the session.Snapshot
	DefaultContextKey = "session"
	// DefaultDecisionKey is the fiber Locals key holding the session.Decision
	DefaultDecisionKey = "session.decision"
)

// SnapshotSource hands out the current session; *session.StateMachine
// satisfies it
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// SnapshotSourceFunc adapts a function to SnapshotSource
type SnapshotSourceFunc func() session.Snapshot

// Snapshot implements SnapshotSource
func (f SnapshotSourceFunc) Snapshot() session.Snapshot {
	return f()
}

// Config defines the config for the guard middleware
type Config struct {
	// Filter skips the middleware when it returns true
	Filter func(*fiber.Ctx) bool
	// Source is required
	Source SnapshotSource
	// Router maps paths to requirements. Defaults to session.NewRouter(nil)
	Router *session.Router
	// Requirement, when set, is used for every request instead of the
	// route table
	Requirement *session.Requirement
	// LoadingHandler answers while the session is not settled
	LoadingHandler fiber.Handler
	// InterstitialHandler answers for accounts awaiting approval
	InterstitialHandler fiber.Handler
	// RedirectHandler performs redirect decisions
	RedirectHandler func(*fiber.Ctx, session.Decision) error
	ContextKey      string
	DecisionKey     string
	Logger          session.Logger
}

// New creates the guard middleware
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		snap := cfg.Source.Snapshot()

		var decision session.Decision
		if cfg.Requirement != nil {
			decision = cfg.Router.Guard().Evaluate(snap, *cfg.Requirement)
		} else {
			// the router outlives the request, fiber reuses the URL buffer
			decision = cfg.Router.Decide(snap, utils.CopyString(c.OriginalURL()))
		}

		c.Locals(cfg.ContextKey, snap)
		c.Locals(cfg.DecisionKey, decision)
		ctx := session.WithSnapshot(c.UserContext(), snap)
		c.SetUserContext(session.WithDecision(ctx, decision))

		switch decision.Outcome {
		case session.OutcomeRender:
			return c.Next()
		case session.OutcomeLoading:
			return cfg.LoadingHandler(c)
		case session.OutcomeInterstitial:
			return cfg.InterstitialHandler(c)
		default:
			cfg.Logger.Debug("guard redirecting %s to %s (%s)", c.OriginalURL(), decision.Location, decision.Reason)
			return cfg.RedirectHandler(c, decision)
		}
	}
}

// Protect guards a single route with req
func Protect(source SnapshotSource, req session.Requirement, config ...Config) fiber.Handler {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.Source = source
	cfg.Requirement = &req
	return New(cfg)
}

// SnapshotFrom returns the snapshot stored by the middleware
func SnapshotFrom(c *fiber.Ctx, key ...string) (session.Snapshot, bool) {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	snap, ok := c.Locals(k).(session.Snapshot)
	return snap, ok
}

// DecisionFrom returns the decision stored by the middleware
func DecisionFrom(c *fiber.Ctx, key ...string) (session.Decision, bool) {
	k := DefaultDecisionKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	decision, ok := c.Locals(k).(session.Decision)
	return decision, ok
}
