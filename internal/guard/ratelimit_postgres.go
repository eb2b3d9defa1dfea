package guard

import (
	"context"
	"database/sql"
	"time"
)

var _ Counter = (*PGCounter)(nil)

// PGCounter keeps windows in the rate_limits table. The upsert takes the row
// lock, so concurrent increments of one key serialise.
type PGCounter struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGCounter(db *sql.DB) *PGCounter {
	return &PGCounter{db: db, now: time.Now}
}

func (c *PGCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := c.now().UTC()
	var n int64
	err := c.db.QueryRowContext(ctx, `
		insert into rate_limits(key, hits, window_start)
		values ($1, 1, $2::timestamptz)
		on conflict (key) do update set
			hits = case when rate_limits.window_start <= $3::timestamptz then 1 else rate_limits.hits + 1 end,
			window_start = case when rate_limits.window_start <= $3::timestamptz then $2::timestamptz else rate_limits.window_start end
		returning hits`,
		key, now, now.Add(-window),
	).Scan(&n)
	return n, err
}
