package session

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Status is the client's belief about its own authentication
type Status string

const (
	// StatusBootstrapping is the initial state; the store has not been read yet
	StatusBootstrapping Status = "bootstrapping"
	// StatusAnonymous means there is no token
	StatusAnonymous Status = "anonymous"
	// StatusResolving means a token exists and its identity is being fetched
	StatusResolving Status = "resolving"
	// StatusActive means the identity was resolved
	StatusActive Status = "active"
	// StatusError means a token exists but its identity could not be determined
	StatusError Status = "error"
)

// IsSettled is true for the states where the guard can decide without waiting
func (s Status) IsSettled() bool {
	switch s {
	case StatusAnonymous, StatusActive, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Snapshot is an immutable view of the session. Readers get copies; only the
// StateMachine produces new snapshots.
type Snapshot struct {
	Status     Status          `json:"status"`
	Token      string          `json:"-"`
	Identity   *Identity       `json:"identity,omitempty"`
	LastError  *goerrors.Error `json:"last_error,omitempty"`
	Enrollment *Identity       `json:"enrollment,omitempty"`
	Version    uint64          `json:"version"`
}

// IsActive is true when an identity was resolved
func (s Snapshot) IsActive() bool {
	return s.Status == StatusActive && s.Identity != nil
}

// HasToken is true when the session believes a token exists
func (s Snapshot) HasToken() bool {
	return s.Token != ""
}

// Role returns the role of the active identity. Sessions without an identity
// report the least privileged role.
func (s Snapshot) Role() UserRole {
	if !s.IsActive() {
		return RolePending
	}
	return s.Identity.Role
}

// IsPending is true for an active session whose account awaits approval, or
// for an anonymous session that just enrolled a pending account.
func (s Snapshot) IsPending() bool {
	if s.IsActive() {
		return s.Identity.IsPending()
	}
	return s.Status == StatusAnonymous && s.Enrollment.IsPending()
}

// ErrorMessage returns the last error message, if any
func (s Snapshot) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}
	return s.LastError.Message
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Identity = s.Identity.Clone()
	c.Enrollment = s.Enrollment.Clone()
	return c
}

func (s Snapshot) String() string {
	who := "<none>"
	if s.Identity != nil {
		who = fmt.Sprintf("%s(%s)", s.Identity.Email, s.Identity.Role)
	}
	return fmt.Sprintf(
		"status=%s token=%t identity=%s error=%q v=%d",
		s.Status,
		s.HasToken(),
		who,
		s.ErrorMessage(),
		s.Version,
	)
}
