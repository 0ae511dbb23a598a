package presence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists presence_status rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Status, error) {
	const q = `
SELECT user_id, is_online, last_seen, is_busy, busy_until, updated_at
FROM presence_status
WHERE user_id = $1
`
	var st Status
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&st.UserID,
		&st.IsOnline,
		&st.LastSeen,
		&st.IsBusy,
		&st.BusyUntil,
		&st.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Status{}, ErrNotFound
		}
		return Status{}, err
	}
	return st, nil
}

func (s *PostgresStore) Touch(ctx context.Context, userID string, now time.Time) error {
	const q = `
INSERT INTO presence_status (user_id, is_online, last_seen, is_busy, busy_until, updated_at)
VALUES ($1, TRUE, $2, FALSE, NULL, $2)
ON CONFLICT (user_id)
DO UPDATE SET is_online = TRUE, last_seen = EXCLUDED.last_seen, updated_at = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q, userID, now)
	return err
}

func (s *PostgresStore) SetBusy(ctx context.Context, userID string, busy bool, busyUntil *time.Time, now time.Time) error {
	if busy {
		// Being on a call implies activity; refresh online state too.
		const q = `
INSERT INTO presence_status (user_id, is_online, last_seen, is_busy, busy_until, updated_at)
VALUES ($1, TRUE, $3, TRUE, $2, $3)
ON CONFLICT (user_id)
DO UPDATE SET is_online = TRUE, last_seen = EXCLUDED.last_seen,
              is_busy = TRUE, busy_until = EXCLUDED.busy_until,
              updated_at = EXCLUDED.updated_at
`
		_, err := s.db.ExecContext(ctx, q, userID, busyUntil, now)
		return err
	}

	const q = `
UPDATE presence_status
SET is_busy = FALSE, busy_until = NULL, updated_at = $2
WHERE user_id = $1
`
	_, err := s.db.ExecContext(ctx, q, userID, now)
	return err
}

func (s *PostgresStore) MarkInactiveOffline(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const q = `
UPDATE presence_status
SET is_online = FALSE, updated_at = $2
WHERE is_online = TRUE
  AND last_seen < $1
`
	res, err := s.db.ExecContext(ctx, q, cutoff, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) ClearExpiredBusy(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE presence_status
SET is_busy = FALSE, busy_until = NULL, updated_at = $1
WHERE is_busy = TRUE
  AND busy_until IS NOT NULL
  AND busy_until < $1
`
	res, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
