// Package store provides session.Store implementations. None of them encrypt
// the token; it is as safe as the medium it is written to.
package store

import (
	"context"
	"sync"

	session "github.com/goliatone/go-auth-session"
)

// Memory keeps the token in process memory
type Memory struct {
	mu    sync.RWMutex
	token string
	ok    bool
}

var _ session.Store = (*Memory)(nil)

// NewMemory creates an empty memory store, optionally holding token
func NewMemory(token ...string) *Memory {
	m := &Memory{}
	if len(token) > 0 && token[0] != "" {
		m.token, m.ok = token[0], true
	}
	return m
}

// Read implements session.Store
func (m *Memory) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.ok, nil
}

// Write implements session.Store
func (m *Memory) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.ok = token, token != ""
	return nil
}

// Clear implements session.Store
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.ok = "", false
	return nil
}
