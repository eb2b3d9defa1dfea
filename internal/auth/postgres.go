package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ffb.ae/internal/store/pg"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore on the users table.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, username, email, password_hash, display_name, role, is_active, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u       User
		role    string
		lastLog sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &role,
		&u.Active, &lastLog, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	if lastLog.Valid {
		t := lastLog.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.Username == "" || u.Email == "" || u.PasswordHash == "" || !u.Role.Valid() {
		return ErrInvalidInput
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users(username, email, password_hash, display_name, role, is_active)
		values ($1, $2, $3, $4, $5, $6)
		returning id, created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.DisplayName, string(u.Role), u.Active,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if pg.IsUniqueViolation(err, "") {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PGUserStore) Find(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByLogin(ctx context.Context, login string) (*User, error) {
	login = NormalizeLogin(login)
	if login == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where (lower(username) = $1 or lower(email) = $1) and is_active
		limit 1`, login)
	return scanUser(row)
}

func (s *PGUserStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login_at = $2, updated_at = $2 where id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if passwordHash == "" {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
