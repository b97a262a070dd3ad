package session

import (
	"context"
	"fmt"
)

// DefaultStorageKey is the well-known key the session token is persisted under
const DefaultStorageKey = "token"

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Store persists a single opaque session token across process restarts.
// Implementations inherit the security properties of their medium; no
// encryption is applied by this package.
type Store interface {
	Read(ctx context.Context) (token string, ok bool, err error)
	Write(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// IdentityResolver resolves the identity a token belongs to. Implementations
// issue one request per call and classify failures as Unauthorized or
// Transient errors.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// IdentityResolverFunc adapts a function to the IdentityResolver interface
type IdentityResolverFunc func(ctx context.Context, token string) (*Identity, error)

// Resolve implements IdentityResolver
func (f IdentityResolverFunc) Resolve(ctx context.Context, token string) (*Identity, error) {
	if f == nil {
		return nil, NewTransientError("identity resolver not configured", nil)
	}
	return f(ctx, token)
}

// AuthAPI is the external authentication API surface the state machine drives
type AuthAPI interface {
	SignIn(ctx context.Context, form SignInForm) (*SignInResult, error)
	SignUp(ctx context.Context, form SignUpForm) (*SignUpResponse, error)
	UpdateProfile(ctx context.Context, token string, form UpdateProfileForm) (*Identity, error)
	UpdatePassword(ctx context.Context, token string, form UpdatePasswordForm) error
}

// RouteConfig holds the navigation destinations used by the guard
type RouteConfig interface {
	GetSignInRoute() string
	GetSignUpRoute() string
	GetPendingRoute() string
	GetNotPermittedRoute() string
	GetDefaultRoute() string
}

// DefaultRouteConfig mirrors the routes of the web client
type DefaultRouteConfig struct {
	SignIn       string `json:"sign_in" yaml:"sign_in" mapstructure:"sign_in"`
	SignUp       string `json:"sign_up" yaml:"sign_up" mapstructure:"sign_up"`
	Pending      string `json:"pending" yaml:"pending" mapstructure:"pending"`
	NotPermitted string `json:"not_permitted" yaml:"not_permitted" mapstructure:"not_permitted"`
	Default      string `json:"default" yaml:"default" mapstructure:"default"`
}

var _ RouteConfig = DefaultRouteConfig{}

func (c DefaultRouteConfig) GetSignInRoute() string       { return orDefault(c.SignIn, "/auth/signin") }
func (c DefaultRouteConfig) GetSignUpRoute() string       { return orDefault(c.SignUp, "/auth/signup") }
func (c DefaultRouteConfig) GetPendingRoute() string      { return orDefault(c.Pending, "/auth/pending") }
func (c DefaultRouteConfig) GetNotPermittedRoute() string { return orDefault(c.NotPermitted, "/") }
func (c DefaultRouteConfig) GetDefaultRoute() string      { return orDefault(c.Default, "/") }

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

type defLogger struct {
	name string
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] "+d.prefix()+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] "+d.prefix()+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] "+d.prefix()+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] "+d.prefix()+newline(format), args...)
}

func (d defLogger) prefix() string {
	if d.name == "" {
		return "SESSION "
	}
	return "SESSION " + d.name + " "
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// DefaultLogger returns the stdout logger used when nothing is configured
func DefaultLogger(name string) Logger {
	return defLogger{name: name}
}

// ResolveLogger picks the logger for a component named name. An explicit
// logger wins, then the provider, then the default stdout logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		return provider, logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}
	return provider, defLogger{name: name}
}
