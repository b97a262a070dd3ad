package session

import (
	"encoding/json"
	"time"
)

// DefaultProfileImage is assigned to sign-ups that do not provide one
const DefaultProfileImage = "/user.png"

// Identity is the resolved record describing an authenticated principal
type Identity struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Role            UserRole       `json:"role"`
	ProfileImageURL string         `json:"profile_image_url,omitempty"`
	CreatedAt       int64          `json:"created_at,omitempty"`
	UpdatedAt       int64          `json:"updated_at,omitempty"`
	LastActiveAt    int64          `json:"last_active_at,omitempty"`
	Settings        map[string]any `json:"settings,omitempty"`
	Info            map[string]any `json:"info,omitempty"`
	OAuthSub        string         `json:"oauth_sub,omitempty"`
	APIKey          string         `json:"api_key,omitempty"`
	IsActive        *bool          `json:"is_active,omitempty"`
}

// UnmarshalJSON decodes the identity and normalizes its role
func (i *Identity) UnmarshalJSON(data []byte) error {
	type rawIdentity Identity
	var raw rawIdentity
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity(raw)
	i.Normalize()
	return nil
}

// Normalize enforces the role invariant: unknown roles become pending.
func (i *Identity) Normalize() *Identity {
	if i == nil {
		return nil
	}
	i.Role, _ = ParseRole(string(i.Role))
	return i
}

// IsZero is true when the identity carries no id and no email
func (i *Identity) IsZero() bool {
	return i == nil || (i.ID == "" && i.Email == "")
}

// IsPending is true when the account still waits for approval
func (i *Identity) IsPending() bool {
	return i != nil && i.Role.IsPending()
}

// HasRole checks if the identity has exactly role
func (i *Identity) HasRole(role UserRole) bool {
	return i != nil && i.Role == role
}

// IsAtLeast checks if the identity role meets minRole
func (i *Identity) IsAtLeast(minRole UserRole) bool {
	return i != nil && i.Role.IsAtLeast(minRole)
}

// Created returns CreatedAt as time
func (i *Identity) Created() time.Time { return unixTime(i.CreatedAt) }

// Updated returns UpdatedAt as time
func (i *Identity) Updated() time.Time { return unixTime(i.UpdatedAt) }

// LastActive returns LastActiveAt as time
func (i *Identity) LastActive() time.Time { return unixTime(i.LastActiveAt) }

// Clone returns a deep copy so snapshots never share mutable state
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Settings = copyMap(i.Settings)
	c.Info = copyMap(i.Info)
	if i.IsActive != nil {
		v := *i.IsActive
		c.IsActive = &v
	}
	return &c
}

// Merge overlays the non zero fields of update onto a copy of i.
func (i *Identity) Merge(update *Identity) *Identity {
	merged := i.Clone()
	if merged == nil {
		return update.Clone()
	}
	if update == nil {
		return merged
	}

	if update.ID != "" {
		merged.ID = update.ID
	}
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Email != "" {
		merged.Email = update.Email
	}
	if update.Role != "" {
		merged.Role = update.Role
	}
	if update.ProfileImageURL != "" {
		merged.ProfileImageURL = update.ProfileImageURL
	}
	if update.CreatedAt != 0 {
		merged.CreatedAt = update.CreatedAt
	}
	if update.UpdatedAt != 0 {
		merged.UpdatedAt = update.UpdatedAt
	}
	if update.LastActiveAt != 0 {
		merged.LastActiveAt = update.LastActiveAt
	}
	if update.Settings != nil {
		merged.Settings = copyMap(update.Settings)
	}
	if update.Info != nil {
		merged.Info = copyMap(update.Info)
	}
	if update.OAuthSub != "" {
		merged.OAuthSub = update.OAuthSub
	}
	if update.APIKey != "" {
		merged.APIKey = update.APIKey
	}
	if update.IsActive != nil {
		v := *update.IsActive
		merged.IsActive = &v
	}

	return merged.Normalize()
}

// SignInResult is what the sign-in endpoint returns: a token and, usually,
// the identity fields next to it.
type SignInResult struct {
	Token     string
	TokenType string
	Identity  *Identity
}

// SignUpResponse is what the sign-up endpoint returns. Token is empty when the
// backend does not sign new accounts in.
type SignUpResponse struct {
	Token    string
	Identity *Identity
}

// SignUpResult describes the session after a sign-up.
type SignUpResult struct {
	Identity         *Identity
	SignedIn         bool
	RequiresApproval bool
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
