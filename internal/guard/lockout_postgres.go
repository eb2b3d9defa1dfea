package guard

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var _ LockoutStore = (*PGLockoutStore)(nil)

// PGLockoutStore keeps attempt records in the login_attempts table. The
// whole transition (restart, increment, lock) is one upsert so concurrent
// failures cannot both observe the same count.
type PGLockoutStore struct {
	db *sql.DB
}

func NewPGLockoutStore(db *sql.DB) *PGLockoutStore {
	return &PGLockoutStore{db: db}
}

// RecordFailure is nextRecord expressed as SQL: $3 is the oldest window start
// still counted, a row restarts when its window or lock has elapsed, and a
// lock still running at $2 is kept as is. lockoutCases in the tests drive
// both implementations.
func (s *PGLockoutStore) RecordFailure(ctx context.Context, identifier string, now time.Time, p LockoutPolicy) (AttemptRecord, error) {
	now = now.UTC()
	rec := AttemptRecord{Identifier: identifier}
	var locked sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		insert into login_attempts as la (identifier, attempts, window_start, locked_until, updated_at)
		values ($1, 1, $2::timestamptz,
			case when 1 >= $4::int then $5::timestamptz else null end, $2::timestamptz)
		on conflict (identifier) do update set
			attempts = case
				when la.window_start <= $3::timestamptz or la.locked_until <= $2::timestamptz then 1
				else la.attempts + 1 end,
			window_start = case
				when la.window_start <= $3::timestamptz or la.locked_until <= $2::timestamptz then $2::timestamptz
				else la.window_start end,
			locked_until = case
				when la.locked_until > $2::timestamptz then la.locked_until
				when (case
					when la.window_start <= $3::timestamptz or la.locked_until <= $2::timestamptz then 1
					else la.attempts + 1 end) >= $4::int then $5::timestamptz
				else null end,
			updated_at = $2::timestamptz
		returning attempts, window_start, locked_until`,
		identifier, now, now.Add(-p.Window), p.Threshold, now.Add(p.Duration),
	).Scan(&rec.Attempts, &rec.WindowStart, &locked)
	if err != nil {
		return AttemptRecord{}, err
	}
	if locked.Valid {
		t := locked.Time
		rec.LockedUntil = &t
	}
	return rec, nil
}

func (s *PGLockoutStore) Get(ctx context.Context, identifier string) (AttemptRecord, error) {
	rec := AttemptRecord{Identifier: identifier}
	var locked sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`select attempts, window_start, locked_until from login_attempts where identifier = $1`, identifier,
	).Scan(&rec.Attempts, &rec.WindowStart, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return AttemptRecord{}, err
	}
	if locked.Valid {
		t := locked.Time
		rec.LockedUntil = &t
	}
	return rec, nil
}

func (s *PGLockoutStore) Clear(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `delete from login_attempts where identifier = $1`, identifier)
	return err
}

// Purge deletes records whose window and lock both ended before cutoff.
func (s *PGLockoutStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from login_attempts
		where window_start < $1 and (locked_until is null or locked_until < $1)`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
