// Package csrf protects the form posts of the local web UI with stateless
// HMAC signed tokens. A token is bound to the client key of the request and
// expires after Config.Expiration.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
	ErrTokenExpired  = errors.New("CSRF token expired")
)

const (
	// DefaultTokenLength is the nonce length in bytes
	DefaultTokenLength = 32
	// DefaultContextKey is the fiber Locals key holding the token
	DefaultContextKey = "csrf_token"
	// DefaultFormFieldName is the form field carrying the token
	DefaultFormFieldName = "_token"
	// DefaultHeaderName is the header carrying the token
	DefaultHeaderName = "X-CSRF-Token"
	// DefaultExpiration is how long a token is accepted
	DefaultExpiration = 12 * time.Hour

	minKeyLength = 32
)

// Config defines the config for the CSRF middleware
type Config struct {
	// Next skips the middleware when it returns true
	Next func(*fiber.Ctx) bool

	TokenLength   int
	ContextKey    string
	FormFieldName string
	HeaderName    string

	// SafeMethods are not validated
	SafeMethods []string

	Expiration time.Duration

	// SecureKey signs tokens. A random key is generated when empty, so
	// tokens do not survive a restart.
	SecureKey []byte

	// KeyLookup returns the value tokens are bound to. Defaults to the
	// client IP.
	KeyLookup func(*fiber.Ctx) string

	ErrorHandler func(*fiber.Ctx, error) error

	now func() time.Time
}

// New creates the CSRF middleware. Every request gets a fresh token in
// Locals; unsafe methods must echo a valid one in the form or the header.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		token, err := cfg.generate(c)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, token)
		c.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
		c.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

		if slices.Contains(cfg.SafeMethods, strings.ToUpper(c.Method())) {
			return c.Next()
		}

		if err := cfg.validate(c, extractToken(c, cfg)); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		return c.Next()
	}
}

// Token returns the token the middleware stored for this request
func Token(c *fiber.Ctx, key ...string) string {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	token, _ := c.Locals(k).(string)
	return token
}

// Field returns a hidden form input carrying the request token
func Field(c *fiber.Ctx, key ...string) string {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	token := Token(c, k)
	if token == "" {
		return ""
	}

	name := DefaultFormFieldName
	if v, ok := c.Locals(k + "_field").(string); ok && v != "" {
		name = v
	}
	return `<input type="hidden" name="` + html.EscapeString(name) + `" value="` + html.EscapeString(token) + `">`
}

func (cfg Config) generate(c *fiber.Ctx) (string, error) {
	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", cfg.now().UTC().Unix(), hex.EncodeToString(nonce), cfg.KeyLookup(c))
	token := payload + ":" + hex.EncodeToString(cfg.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (cfg Config) sign(payload string) []byte {
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (cfg Config) validate(c *fiber.Ctx, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	// the bound key may itself contain colons, so split from both ends
	raw := string(decoded)
	sigAt := strings.LastIndex(raw, ":")
	if sigAt < 0 {
		return ErrTokenMismatch
	}
	payload, signatureHex := raw[:sigAt], raw[sigAt+1:]

	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrTokenMismatch
	}
	if !hmac.Equal(signature, cfg.sign(payload)) {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(cfg.KeyLookup(c))) != 1 {
		return ErrTokenMismatch
	}

	if cfg.now().UTC().After(time.Unix(issued, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}
	return nil
}

func extractToken(c *fiber.Ctx, cfg Config) string {
	if token := c.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return c.Get(cfg.HeaderName)
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace}
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.KeyLookup == nil {
		cfg.KeyLookup = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTokenMismatch), errors.Is(err, ErrTokenExpired):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "CSRF validation error")
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < minKeyLength {
			panic(fmt.Errorf("csrf: secure key must be at least %d bytes, got %d", minKeyLength, len(current)))
		}
		return current
	}
	key := make([]byte, minKeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
