package client

import (
	"net/http"
	"time"

	session "github.com/goliatone/go-auth-session"
)

const (
	// DefaultBaseURL is where the reference backend serves its API
	DefaultBaseURL = "http://localhost:8000/api/v1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 15 * time.Second
)

// Client talks to the auth API. It implements session.AuthAPI and
// session.IdentityResolver; the admin operations live in Users.
//
//	c := client.New("http://localhost:8000/api/v1")
//	sm := session.NewStateMachine(store.NewMemory(), c, c)
type Client struct {
	baseURL    string
	httpClient *http.Client
	endpoints  Endpoints
	userAgent  string
	logger     session.Logger

	// Users holds the admin user management operations
	Users *UsersService
}

var _ session.AuthAPI = (*Client)(nil)
var _ session.IdentityResolver = (*Client)(nil)

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithEndpoints overrides endpoint paths; empty fields keep their default
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		c.endpoints = endpoints.withDefaults()
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger session.Logger) Option {
	return func(c *Client) {
		_, c.logger = session.ResolveLogger("client", nil, logger)
	}
}

// New creates a client for the API served at baseURL
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		endpoints: DefaultEndpoints(),
		userAgent: "go-auth-session/1.0",
	}
	_, c.logger = session.ResolveLogger("client", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.Users = &UsersService{client: c}

	return c
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoints returns the endpoint paths in use
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}
