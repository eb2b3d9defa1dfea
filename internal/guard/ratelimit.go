package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Policy is a fixed-window budget: at most Max hits per Window per identifier.
type Policy struct {
	Bucket string
	Window time.Duration
	Max    int
}

func (p Policy) validate() error {
	if p.Bucket == "" {
		return errors.New("guard: policy bucket is required")
	}
	if p.Window <= 0 || p.Max <= 0 {
		return fmt.Errorf("guard: policy %s: window and max must be positive", p.Bucket)
	}
	return nil
}

// Counter atomically increments the hit count of key inside its current
// window and returns the new count. The first hit opens a window of the
// given length.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter applies policies on top of a Counter.
type Limiter struct {
	counter Counter
}

func NewLimiter(c Counter) *Limiter {
	return &Limiter{counter: c}
}

// Allow counts one hit for identifier and reports whether it stays within p.
func (l *Limiter) Allow(ctx context.Context, identifier string, p Policy) (bool, error) {
	if err := p.validate(); err != nil {
		return false, err
	}
	if identifier == "" {
		identifier = "unknown"
	}
	n, err := l.counter.Increment(ctx, "rl:"+p.Bucket+":"+identifier, p.Window)
	if err != nil {
		return false, fmt.Errorf("guard: rate limit %s: %w", p.Bucket, err)
	}
	return n <= int64(p.Max), nil
}

var _ Counter = (*MemoryCounter)(nil)

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

const memorySweepThreshold = 10000

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*window), now: time.Now}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, win time.Duration) (int64, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.windows) > memorySweepThreshold {
		for k, w := range c.windows {
			if !now.Before(w.resetAt) {
				delete(c.windows, k)
			}
		}
	}
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}
