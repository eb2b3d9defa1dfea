package auth

import (
	"strings"
	"time"
)

// Role is the back-office role of an admin account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// User is a back-office account able to sign in to the admin area.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeLogin lowercases and trims a username or email for lookup.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
