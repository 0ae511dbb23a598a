package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists call records.
//
// Assumed table:
// - calls (call_id PK, caller_id, listener_id, call_type, status, start_time,
//   end_time, last_billed_at, coins_spent, duration_seconds, end_reason,
//   created_at, updated_at)
//
// The conditional updates rely on `WHERE status = 'ongoing'` (plus the
// last_billed_at equality for the billing claim); RowsAffected tells the
// caller whether it won.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callColumns = `
call_id, caller_id, listener_id, call_type, status, start_time, end_time,
last_billed_at, coins_spent, duration_seconds, COALESCE(end_reason, ''), created_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.CallID,
		&c.CallerID,
		&c.ListenerID,
		&c.CallType,
		&c.Status,
		&c.StartTime,
		&c.EndTime,
		&c.LastBilledAt,
		&c.CoinsSpent,
		&c.DurationSeconds,
		&c.EndReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *PostgresStore) Get(ctx context.Context, callID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  call_id, caller_id, listener_id, call_type, status, start_time,
  last_billed_at, coins_spent, duration_seconds, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := s.db.ExecContext(ctx, q,
		c.CallID,
		c.CallerID,
		c.ListenerID,
		c.CallType,
		c.Status,
		c.StartTime,
		c.LastBilledAt,
		c.CoinsSpent,
		c.DurationSeconds,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListOngoing(ctx context.Context) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE status = 'ongoing' ORDER BY start_time ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClaimBillableWindow(ctx context.Context, callID string, observed time.Time, advanceBy time.Duration, now time.Time) (bool, error) {
	const q = `
UPDATE calls
SET last_billed_at = last_billed_at + $3 * interval '1 second',
    updated_at = $4
WHERE call_id = $1
  AND status = 'ongoing'
  AND last_billed_at = $2
`
	res, err := s.db.ExecContext(ctx, q, callID, observed, int64(advanceBy/time.Second), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) AddCoinsSpent(ctx context.Context, callID string, coins int64, now time.Time) (bool, error) {
	const q = `
UPDATE calls
SET coins_spent = coins_spent + $2,
    updated_at = $3
WHERE call_id = $1
  AND status = 'ongoing'
`
	res, err := s.db.ExecContext(ctx, q, callID, coins, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) Finalize(ctx context.Context, callID string, patch FinalizePatch) (bool, error) {
	// The linchpin CAS: terminal fields are written only when the status is
	// still ongoing, so at most one caller ever wins.
	const q = `
UPDATE calls
SET status = $2,
    end_reason = $3,
    end_time = $4,
    duration_seconds = $5,
    coins_spent = GREATEST(coins_spent, $6),
    updated_at = $4
WHERE call_id = $1
  AND status = 'ongoing'
`
	res, err := s.db.ExecContext(ctx, q,
		callID,
		patch.Status,
		patch.Reason,
		patch.EndTime,
		patch.DurationSeconds,
		patch.CoinsSpent,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
