// Package authtest runs an in-process auth backend that behaves like the
// reference API: the first account to sign up becomes admin, later ones wait
// for approval, tokens are HS256 JWTs and passwords are bcrypt hashes.
package authtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	session "github.com/goliatone/go-auth-session"
	"golang.org/x/crypto/bcrypt"
)

// Option configures a Backend
type Option func(*Backend)

// WithSigningKey sets the HS256 key
func WithSigningKey(key []byte) Option {
	return func(b *Backend) {
		if len(key) > 0 {
			b.signingKey = key
		}
	}
}

// WithTokenTTL sets the token lifetime
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithClock injects a custom clock
func WithClock(clock func() time.Time) Option {
	return func(b *Backend) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(b *Backend) {
		b.bcryptCost = cost
	}
}

// WithSignUpToken makes sign-up answer with a token next to the identity
func WithSignUpToken() Option {
	return func(b *Backend) {
		b.signUpToken = true
	}
}

// WithNestedSignIn answers sign-in with {"token": ..., "user": {...}}
// instead of the flat access_token shape
func WithNestedSignIn() Option {
	return func(b *Backend) {
		b.nestedSignIn = true
	}
}

// WithTokenOnlySignIn answers sign-in without identity fields
func WithTokenOnlySignIn() Option {
	return func(b *Backend) {
		b.tokenOnlySignIn = true
	}
}

// WithLogger sets the backend logger
func WithLogger(logger session.Logger) Option {
	return func(b *Backend) {
		_, b.logger = session.ResolveLogger("authtest", nil, logger)
	}
}

// Backend is the fake auth API
type Backend struct {
	signingKey      []byte
	tokenTTL        time.Duration
	bcryptCost      int
	signUpToken     bool
	nestedSignIn    bool
	tokenOnlySignIn bool
	now             func() time.Time
	logger          session.Logger

	mu       sync.Mutex
	accounts map[string]*account
	byEmail  map[string]string
	failures []failure
	hits     map[string]int
	revoked  map[string]bool
}

type account struct {
	identity session.Identity
	hash     string
}

type failure struct {
	route  string
	status int
	detail string
}

// New creates a backend with no accounts
func New(opts ...Option) *Backend {
	b := &Backend{
		signingKey: []byte("authtest-signing-key"),
		tokenTTL:   time.Hour,
		bcryptCost: bcrypt.MinCost,
		now:        time.Now,
		accounts:   map[string]*account{},
		byEmail:    map[string]string{},
		hits:       map[string]int{},
		revoked:    map[string]bool{},
	}
	_, b.logger = session.ResolveLogger("authtest", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Serve starts the backend on an httptest server closed with tb.Cleanup. It
// returns the base URL to hand to the client.
func Serve(tb testing.TB, opts ...Option) (*Backend, string) {
	tb.Helper()

	b := New(opts...)
	srv := httptest.NewServer(b.Handler())
	tb.Cleanup(srv.Close)
	return b, srv.URL
}

// Handler returns the API routes
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.countHits)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signin", b.handleSignIn)
		r.Post("/login", b.handleSignIn)
		r.Post("/signup", b.handleSignUp)
		r.Get("/me", b.authenticated(b.handleMe))
	})

	r.Get("/me", b.authenticated(b.handleMe))

	r.Route("/users", func(r chi.Router) {
		r.Get("/me", b.authenticated(b.handleMe))
		r.Put("/profile", b.authenticated(b.handleUpdateProfile))
		r.Put("/password", b.authenticated(b.handleUpdatePassword))

		r.Get("/", b.admin(b.handleListUsers))
		r.Post("/", b.admin(b.handleAddUser))
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/role", b.admin(b.handleUpdateRole))
			r.Delete("/", b.admin(b.handleDeleteUser))
		})
	})

	return r
}

// FailNext makes the next request to route (for example "GET /users/me")
// answer status with detail instead of being handled.
func (b *Backend) FailNext(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{route: route, status: status, detail: detail})
}

// Hits returns how many requests route received
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// Revoke makes every token of the account email invalid
func (b *Backend) Revoke(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.byEmail[normalizeEmail(email)]; ok {
		b.revoked[id] = true
	}
}

// SetRole changes the role of email, as an administrator would
func (b *Backend) SetRole(email string, role session.UserRole) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return false
	}
	acc := b.accounts[id]
	acc.identity.Role = role
	acc.identity.UpdatedAt = b.now().Unix()
	return true
}

// Lookup returns a copy of the account identity
func (b *Backend) Lookup(email string) (*session.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	return b.accounts[id].identity.Clone(), true
}

// Seed registers an account directly, bypassing the sign-up policy
func (b *Backend) Seed(name, email, password string, role session.UserRole) (*session.Identity, error) {
	hash, err := b.hashPassword(password)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.insert(name, email, hash, role, session.DefaultProfileImage)
	return acc.identity.Clone(), nil
}

func (b *Backend) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")

		b.mu.Lock()
		b.hits[route]++
		var injected *failure
		for i, f := range b.failures {
			if f.route == route {
				f := f
				injected = &f
				b.failures = append(b.failures[:i:i], b.failures[i+1:]...)
				break
			}
		}
		b.mu.Unlock()

		if injected != nil {
			writeDetail(w, injected.status, injected.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}
