package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a token without verifying it. It is for
// display only (expiry hints in the CLI); validity is decided by the backend.
type TokenInfo struct {
	Subject   string    `json:"sub,omitempty"`
	Role      string    `json:"role,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	Opaque    bool      `json:"opaque"`
}

// ExpiresIn returns the time left before expiry, zero for unknown expiry
func (t TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// LooksExpired is true when the token carries an expiry in the past
func (t TokenInfo) LooksExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without checking its signature.
// Tokens that are not JWTs are reported as opaque, which is not an error.
func InspectToken(token string) TokenInfo {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return TokenInfo{Opaque: true}
	}

	info := TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	return info
}
