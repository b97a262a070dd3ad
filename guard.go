package session

import "fmt"

// Outcome is what a guarded view should do with the current session
type Outcome string

const (
	// OutcomeRender shows the protected content
	OutcomeRender Outcome = "render"
	// OutcomeRedirect navigates to Decision.Location
	OutcomeRedirect Outcome = "redirect"
	// OutcomeInterstitial shows the pending approval screen instead of the content
	OutcomeInterstitial Outcome = "interstitial"
	// OutcomeLoading shows a loading indicator; the session is not settled
	OutcomeLoading Outcome = "loading"
)

// Reason explains a decision. It is meant for logs and tests, not for users.
type Reason string

const (
	ReasonAllowed         Reason = "allowed"
	ReasonPublic          Reason = "public"
	ReasonNotSettled      Reason = "not_settled"
	ReasonAnonymous       Reason = "anonymous"
	ReasonSessionError    Reason = "session_error"
	ReasonPendingApproval Reason = "pending_approval"
	ReasonRoleMismatch    Reason = "role_mismatch"
)

// Decision is the result of evaluating a Requirement against a Snapshot
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	Reason   Reason  `json:"reason"`
}

// Is reports whether the decision has outcome o
func (d Decision) Is(o Outcome) bool {
	return d.Outcome == o
}

func (d Decision) String() string {
	if d.Location != "" {
		return fmt.Sprintf("%s(%s) %s", d.Outcome, d.Location, d.Reason)
	}
	return fmt.Sprintf("%s %s", d.Outcome, d.Reason)
}

type requirementKind int

const (
	requirePublic requirementKind = iota
	requireAuthentication
	requireRole
)

// Requirement describes what a view needs from the session
type Requirement struct {
	kind requirementKind
	role UserRole
}

// Public renders regardless of the session
func Public() Requirement {
	return Requirement{kind: requirePublic}
}

// RequireAuthentication renders for any active, approved session
func RequireAuthentication() Requirement {
	return Requirement{kind: requireAuthentication}
}

// RequireRole renders for active, approved sessions whose role is at least role
func RequireRole(role UserRole) Requirement {
	return Requirement{kind: requireRole, role: role}
}

// Role returns the minimum role, empty unless built with RequireRole
func (r Requirement) Role() UserRole {
	return r.role
}

// IsPublic is true for Public requirements
func (r Requirement) IsPublic() bool {
	return r.kind == requirePublic
}

func (r Requirement) String() string {
	switch r.kind {
	case requireAuthentication:
		return "authenticated"
	case requireRole:
		return "role:" + string(r.role)
	default:
		return "public"
	}
}

// Guard turns a session snapshot and a requirement into a navigation
// decision. It is a UX convenience only: the backend must enforce
// authorization on every request on its own.
type Guard struct {
	routes RouteConfig
}

// NewGuard creates a guard; a nil config uses DefaultRouteConfig
func NewGuard(routes RouteConfig) Guard {
	if routes == nil {
		routes = DefaultRouteConfig{}
	}
	return Guard{routes: routes}
}

// Routes returns the route configuration used for redirects
func (g Guard) Routes() RouteConfig {
	if g.routes == nil {
		return DefaultRouteConfig{}
	}
	return g.routes
}

// Evaluate is a pure function of its inputs
func (g Guard) Evaluate(snap Snapshot, req Requirement) Decision {
	routes := g.Routes()

	if req.kind == requirePublic {
		return Decision{Outcome: OutcomeRender, Reason: ReasonPublic}
	}

	switch snap.Status {
	case StatusBootstrapping, StatusResolving:
		return Decision{Outcome: OutcomeLoading, Reason: ReasonNotSettled}
	case StatusAnonymous:
		if snap.IsPending() {
			return Decision{Outcome: OutcomeInterstitial, Reason: ReasonPendingApproval}
		}
		return Decision{Outcome: OutcomeRedirect, Location: routes.GetSignInRoute(), Reason: ReasonAnonymous}
	case StatusActive:
	default:
		return Decision{Outcome: OutcomeRedirect, Location: routes.GetSignInRoute(), Reason: ReasonSessionError}
	}

	if !snap.IsActive() {
		return Decision{Outcome: OutcomeRedirect, Location: routes.GetSignInRoute(), Reason: ReasonSessionError}
	}

	if snap.Identity.IsPending() {
		return Decision{Outcome: OutcomeInterstitial, Reason: ReasonPendingApproval}
	}

	if req.kind == requireRole && !snap.Identity.IsAtLeast(req.role) {
		return Decision{Outcome: OutcomeRedirect, Location: routes.GetNotPermittedRoute(), Reason: ReasonRoleMismatch}
	}

	return Decision{Outcome: OutcomeRender, Reason: ReasonAllowed}
}
