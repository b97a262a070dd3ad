package session

import (
	"net/url"
	"path"
	"strings"
	"sync"
)

// ReasonUnknownRoute is used for paths outside the route table
const ReasonUnknownRoute Reason = "unknown_route"

// Route binds a path to the requirement that guards it
type Route struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Requirement Requirement `json:"-"`
}

// DefaultRoutes is the route table of the web client
func DefaultRoutes(cfg RouteConfig) []Route {
	if cfg == nil {
		cfg = DefaultRouteConfig{}
	}
	return []Route{
		{Name: "dashboard", Path: "/", Requirement: RequireAuthentication()},
		{Name: "signin", Path: cfg.GetSignInRoute(), Requirement: Public()},
		{Name: "signup", Path: cfg.GetSignUpRoute(), Requirement: Public()},
		{Name: "pending", Path: cfg.GetPendingRoute(), Requirement: Public()},
		{Name: "profile", Path: "/profile", Requirement: RequireAuthentication()},
		{Name: "admin.users", Path: "/admin/users", Requirement: RequireRole(RoleAdmin)},
	}
}

// RouterOption customizes a Router
type RouterOption func(*Router)

// WithRoutes replaces the default route table
func WithRoutes(routes ...Route) RouterOption {
	return func(r *Router) {
		r.routes = map[string]Route{}
		r.order = nil
		for _, route := range routes {
			r.add(route)
		}
	}
}

// WithRouterLogger sets the router logger
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		_, r.logger = ResolveLogger("session.router", nil, logger)
	}
}

// Router evaluates paths against the route table and remembers the last path
// a signed out user was turned away from, so sign-in can return there.
type Router struct {
	guard  Guard
	logger Logger

	mu       sync.Mutex
	routes   map[string]Route
	order    []string
	rejected string
}

// NewRouter creates a router using cfg for destinations
func NewRouter(cfg RouteConfig, opts ...RouterOption) *Router {
	r := &Router{
		guard:  NewGuard(cfg),
		routes: map[string]Route{},
	}
	_, r.logger = ResolveLogger("session.router", nil, nil)

	for _, route := range DefaultRoutes(r.guard.Routes()) {
		r.add(route)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Guard returns the decision function used by the router
func (r *Router) Guard() Guard {
	return r.guard
}

// Config returns the route destinations
func (r *Router) Config() RouteConfig {
	return r.guard.Routes()
}

// Handle adds or replaces the requirement for p
func (r *Router) Handle(name, p string, req Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(Route{Name: name, Path: p, Requirement: req})
}

// Routes lists the route table in registration order
func (r *Router) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Route, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.routes[p])
	}
	return out
}

// Lookup returns the route registered for p
func (r *Router) Lookup(p string) (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[CleanPath(p)]
	return route, ok
}

// Decide evaluates the session against the route registered for p. Unknown
// paths redirect to the default route. Paths rejected because the session is
// not signed in are remembered for TakeRedirect.
func (r *Router) Decide(snap Snapshot, p string) Decision {
	route, ok := r.Lookup(p)
	if !ok {
		return Decision{
			Outcome:  OutcomeRedirect,
			Location: r.Config().GetDefaultRoute(),
			Reason:   ReasonUnknownRoute,
		}
	}

	decision := r.guard.Evaluate(snap, route.Requirement)
	if decision.Outcome == OutcomeRedirect && decision.Location == r.Config().GetSignInRoute() {
		r.remember(p)
	}
	return decision
}

// TakeRedirect returns the last rejected path and forgets it. def is
// returned when nothing was remembered, falling back to the default route.
func (r *Router) TakeRedirect(def ...string) string {
	r.mu.Lock()
	rejected := r.rejected
	r.rejected = ""
	r.mu.Unlock()

	if rejected != "" {
		return rejected
	}
	if len(def) > 0 && def[0] != "" {
		return def[0]
	}
	return r.Config().GetDefaultRoute()
}

// PeekRedirect returns the remembered path without forgetting it
func (r *Router) PeekRedirect() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

func (r *Router) remember(p string) {
	target := requestURI(p)
	cfg := r.Config()
	switch CleanPath(target) {
	case cfg.GetSignInRoute(), cfg.GetSignUpRoute(), cfg.GetPendingRoute():
		return
	}

	r.mu.Lock()
	r.rejected = strings.Clone(target)
	r.mu.Unlock()
	r.logger.Debug("remembering rejected route %s", target)
}

func (r *Router) add(route Route) {
	p := CleanPath(route.Path)
	route.Path = p
	if _, exists := r.routes[p]; !exists {
		r.order = append(r.order, p)
	}
	r.routes[p] = route
}

// CleanPath normalizes p for route lookups: query and fragment are dropped,
// the path is cleaned and never ends with a slash (except the root).
func CleanPath(p string) string {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// requestURI keeps the query string so the user returns to the same view
func requestURI(p string) string {
	u, err := url.Parse(p)
	if err != nil {
		return CleanPath(p)
	}
	out := CleanPath(u.Path)
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
