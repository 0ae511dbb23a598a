package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"listenline/internal/calls"
	"listenline/internal/ledger"
)

// PostgresRepo reads report data straight from the calls and
// coin_transactions tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callSelect = `
SELECT call_id, caller_id, listener_id, call_type, status, COALESCE(end_reason, ''),
       start_time, end_time, duration_seconds, coins_spent
FROM calls`

func (r *PostgresRepo) ListCallsByParticipant(ctx context.Context, userID string, from, to time.Time, limit int) ([]calls.Call, error) {
	rows, err := r.db.QueryContext(ctx, callSelect+`
WHERE (caller_id = $1 OR listener_id = $1)
  AND start_time >= $2 AND start_time < $3
ORDER BY start_time DESC
LIMIT $4`, userID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls by participant: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (r *PostgresRepo) ListCallsByListener(ctx context.Context, listenerID string, from, to time.Time) ([]calls.Call, error) {
	rows, err := r.db.QueryContext(ctx, callSelect+`
WHERE listener_id = $1
  AND start_time >= $2 AND start_time < $3
ORDER BY start_time DESC`, listenerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calls by listener: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]ledger.CoinTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT tx_id, user_id, amount, kind, COALESCE(related_call_id, ''), created_at
FROM coin_transactions
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.CoinTransaction, 0)
	for rows.Next() {
		var tx ledger.CoinTransaction
		var kind string
		if err := rows.Scan(&tx.TxID, &tx.UserID, &tx.Amount, &kind, &tx.RelatedCallID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = ledger.TxKind(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func collectCalls(rows *sql.Rows) ([]calls.Call, error) {
	out := make([]calls.Call, 0)
	for rows.Next() {
		var c calls.Call
		var callType, status, reason string
		var endTime sql.NullTime
		if err := rows.Scan(&c.CallID, &c.CallerID, &c.ListenerID, &callType, &status, &reason,
			&c.StartTime, &endTime, &c.DurationSeconds, &c.CoinsSpent); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.CallType = calls.CallType(callType)
		c.Status = calls.CallStatus(status)
		c.EndReason = calls.EndReason(reason)
		if endTime.Valid {
			t := endTime.Time
			c.EndTime = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
