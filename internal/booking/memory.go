package booking

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps bookings in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byRef  map[string]*Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRef: make(map[string]*Booking)}
}

func clone(b *Booking) *Booking {
	c := *b
	c.Photos = append([]string(nil), b.Photos...)
	return &c
}

func (s *MemoryStore) Create(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRef[b.Reference]; exists {
		return ErrDuplicateReference
	}
	s.nextID++
	b.ID = s.nextID
	s.byRef[b.Reference] = clone(b)
	return nil
}

func (s *MemoryStore) FindByReference(_ context.Context, reference string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byRef[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]*Booking, error) {
	s.mu.RLock()
	out := make([]*Booking, 0, len(s.byRef))
	for _, b := range s.byRef {
		out = append(out, clone(b))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByStatus(context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(Statuses))
	for _, b := range s.byRef {
		counts[b.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, reference string, from, to Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byRef[reference]
	if !ok {
		return ErrNotFound
	}
	if b.Status != from {
		return ErrStatusConflict
	}
	b.Status = to
	b.UpdatedAt = at
	return nil
}
