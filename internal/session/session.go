// Package session keeps server-side session state behind an opaque cookie id.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrNotFound is returned by stores for unknown or expired ids.
var ErrNotFound = errors.New("session: not found")

const idBytes = 32

// Session is the server-side state bound to one browser cookie.
type Session struct {
	ID        string            `json:"id"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`

	fresh bool
}

// Store persists sessions. Implementations must treat expired sessions as
// missing.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

func newSession(now time.Time) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Values:    make(map[string]string),
		CreatedAt: now,
		fresh:     true,
	}, nil
}

func (s *Session) Get(key string) string {
	if s == nil || s.Values == nil {
		return ""
	}
	return s.Values[key]
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.Values, key)
}

// Clear drops every value.
func (s *Session) Clear() {
	s.Values = make(map[string]string)
}

// IsNew reports whether the session has never been persisted.
func (s *Session) IsNew() bool {
	return s.fresh
}

func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Values = maps.Clone(s.Values)
	if cp.Values == nil {
		cp.Values = make(map[string]string)
	}
	return &cp
}

func newID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type ctxKey struct{}

// WithContext attaches s to ctx.
func WithContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session loaded by Manager.Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
