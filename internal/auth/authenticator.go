package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Authenticator checks admin credentials. Unknown logins, inactive accounts
// and wrong passwords all cost one bcrypt comparison and yield
// ErrInvalidCredentials.
type Authenticator struct {
	users     UserStore
	cost      int
	dummyHash string
}

func NewAuthenticator(users UserStore, cost int) (*Authenticator, error) {
	if cost < MinCost {
		cost = MinCost
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("auth: dummy secret: %w", err)
	}
	dummy, err := HashPassword(hex.EncodeToString(secret), cost)
	if err != nil {
		return nil, err
	}
	return &Authenticator{users: users, cost: cost, dummyHash: dummy}, nil
}

// Authenticate returns the active user matching login (username or email)
// whose password verifies.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (*User, error) {
	if NormalizeLogin(login) == "" || password == "" {
		_ = VerifyPassword(a.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	u, err := a.users.FindByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		_ = VerifyPassword(a.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil || !u.Active {
		return nil, ErrInvalidCredentials
	}
	if NeedsRehash(u.PasswordHash, a.cost) {
		if hash, err := HashPassword(password, a.cost); err == nil {
			if err := a.users.UpdatePassword(ctx, u.ID, hash); err == nil {
				u.PasswordHash = hash
			}
		}
	}
	return u, nil
}

// Cost is the bcrypt cost used for new hashes.
func (a *Authenticator) Cost() int {
	return a.cost
}
