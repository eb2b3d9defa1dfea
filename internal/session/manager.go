package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Manager binds sessions to a cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

type Option func(*Manager)

func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecure marks the cookie Secure (HTTPS only).
func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		cookieName: "ffb_session",
		ttl:        2 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the session named by the request cookie, or a fresh unsaved
// session when there is none or it expired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return newSession(m.now())
	}
	sess, err := m.store.Get(r.Context(), c.Value)
	if errors.Is(err, ErrNotFound) {
		return newSession(m.now())
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Save extends the expiry, persists s and (re)sets the cookie. It must be
// called before the response body is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = m.now().Add(m.ttl)
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	s.fresh = false
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Regenerate moves s to a new id. The old id is removed from the store
// before the new one is written so it can never be resumed.
func (m *Manager) Regenerate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	old := s.ID
	if !s.fresh && old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			return fmt.Errorf("session: drop old id: %w", err)
		}
	}
	id, err := newID()
	if err != nil {
		return err
	}
	s.ID = id
	s.CreatedAt = m.now()
	return m.Save(ctx, w, s)
}

// Destroy deletes s from the store, clears its values and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("session: destroy: %w", err)
		}
	}
	s.Clear()
	s.ID = ""
	s.fresh = true
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware loads the session into the request context. Handlers that
// mutate it call Save themselves.
func (m *Manager) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Load(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), sess)))
		})
	}
}
