package inquiry

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PGStore)(nil)
)

type MemoryStore struct {
	mu          sync.Mutex
	messages    []ContactMessage
	subscribers map[string]Subscriber
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subscribers: make(map[string]Subscriber)}
}

func (s *MemoryStore) SaveContact(_ context.Context, m *ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, *m)
	return nil
}

func (s *MemoryStore) Subscribe(_ context.Context, sub *Subscriber) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subscribers[sub.Email]; ok {
		*sub = existing
		return false, nil
	}
	sub.ID = int64(len(s.subscribers) + 1)
	s.subscribers[sub.Email] = *sub
	return true, nil
}

// Messages returns a copy of the stored contact messages.
func (s *MemoryStore) Messages() []ContactMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ContactMessage(nil), s.messages...)
}

type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) SaveContact(ctx context.Context, m *ContactMessage) error {
	return s.db.QueryRowContext(ctx, `
		insert into contact_messages (name, email, phone, subject, message, client_ip, created_at)
		values ($1, $2, nullif($3, ''), $4, $5, nullif($6, ''), $7)
		returning id`,
		m.Name, m.Email, m.Phone, m.Subject, m.Message, m.ClientIP, m.CreatedAt,
	).Scan(&m.ID)
}

func (s *PGStore) Subscribe(ctx context.Context, sub *Subscriber) (bool, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into newsletter_subscribers (email, locale, client_ip, created_at)
		values ($1, $2, nullif($3, ''), $4)
		on conflict (email) do nothing
		returning id`,
		sub.Email, sub.Locale, sub.ClientIP, sub.CreatedAt,
	).Scan(&sub.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
