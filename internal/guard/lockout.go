package guard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LockoutPolicy locks an identifier for Duration once Threshold failures
// accumulate inside Window.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// DefaultLockoutPolicy is five failures in fifteen minutes, locked for fifteen.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Window: 15 * time.Minute, Duration: 15 * time.Minute}
}

// AttemptRecord is the failed-login state of one identifier.
type AttemptRecord struct {
	Identifier  string
	Attempts    int
	WindowStart time.Time
	LockedUntil *time.Time
}

// LockedAt reports whether the record blocks logins at now.
func (r AttemptRecord) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// RemainingAt is the time left on the lock, zero when unlocked.
func (r AttemptRecord) RemainingAt(now time.Time) time.Duration {
	if !r.LockedAt(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// LockoutStore persists attempt records. RecordFailure must be atomic per
// identifier: two concurrent failures always produce two distinct counts.
type LockoutStore interface {
	RecordFailure(ctx context.Context, identifier string, now time.Time, p LockoutPolicy) (AttemptRecord, error)
	// Get returns a zero record with Attempts == 0 for unknown identifiers.
	Get(ctx context.Context, identifier string) (AttemptRecord, error)
	Clear(ctx context.Context, identifier string) error
}

// Lockout answers lock questions for the login flow. Every method takes the
// caller's clock reading so one login attempt is judged at a single instant.
type Lockout struct {
	store  LockoutStore
	policy LockoutPolicy
}

func NewLockout(store LockoutStore, p LockoutPolicy) (*Lockout, error) {
	if store == nil {
		return nil, errors.New("guard: lockout store is required")
	}
	if p.Threshold <= 0 || p.Window <= 0 || p.Duration <= 0 {
		return nil, errors.New("guard: lockout policy values must be positive")
	}
	return &Lockout{store: store, policy: p}, nil
}

func (l *Lockout) IsLocked(ctx context.Context, identifier string, now time.Time) (bool, error) {
	rec, err := l.store.Get(ctx, identifier)
	if err != nil {
		return false, err
	}
	return rec.LockedAt(now), nil
}

// Remaining returns how long identifier stays locked after now.
func (l *Lockout) Remaining(ctx context.Context, identifier string, now time.Time) (time.Duration, error) {
	rec, err := l.store.Get(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return rec.RemainingAt(now), nil
}

// RegisterFailure counts one failed login at now and returns the updated
// record.
func (l *Lockout) RegisterFailure(ctx context.Context, identifier string, now time.Time) (AttemptRecord, error) {
	return l.store.RecordFailure(ctx, identifier, now, l.policy)
}

func (l *Lockout) Reset(ctx context.Context, identifier string) error {
	return l.store.Clear(ctx, identifier)
}

// nextRecord applies one failure to prev. Windows restart when the previous
// window or lock has elapsed; an active lock is never shortened.
func nextRecord(prev AttemptRecord, exists bool, now time.Time, p LockoutPolicy) AttemptRecord {
	next := prev
	restart := !exists ||
		!prev.WindowStart.After(now.Add(-p.Window)) ||
		(prev.LockedUntil != nil && !now.Before(*prev.LockedUntil))
	if restart {
		next.Attempts = 1
		next.WindowStart = now
		next.LockedUntil = nil
	} else {
		next.Attempts++
	}
	if prev.LockedAt(now) {
		next.LockedUntil = prev.LockedUntil
	} else if next.Attempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

var _ LockoutStore = (*MemoryLockoutStore)(nil)

// MemoryLockoutStore keeps attempt records in process.
type MemoryLockoutStore struct {
	mu      sync.Mutex
	records map[string]AttemptRecord
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{records: make(map[string]AttemptRecord)}
}

func (s *MemoryLockoutStore) RecordFailure(_ context.Context, identifier string, now time.Time, p LockoutPolicy) (AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.records[identifier]
	prev.Identifier = identifier
	next := nextRecord(prev, ok, now, p)
	s.records[identifier] = next
	return next, nil
}

func (s *MemoryLockoutStore) Get(_ context.Context, identifier string) (AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok {
		return AttemptRecord{Identifier: identifier}, nil
	}
	return rec, nil
}

func (s *MemoryLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	delete(s.records, identifier)
	s.mu.Unlock()
	return nil
}
