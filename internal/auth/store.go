package auth

import (
	"context"
	"time"
)

// UserStore manages admin accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id int64) (*User, error)
	// FindByLogin matches username or email case-insensitively among active users.
	FindByLogin(ctx context.Context, login string) (*User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
