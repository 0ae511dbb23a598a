package rates

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo reads the call_rates table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) FindRate(ctx context.Context, callType string, at time.Time) (CallRate, bool, error) {
	const q = `
SELECT id, call_type, rate_per_minute, minimum_charge,
       effective_from, effective_to, status, created_at, updated_at
FROM call_rates
WHERE call_type = $1
  AND status = 'active'
  AND effective_from <= $2
  AND (effective_to IS NULL OR effective_to > $2)
ORDER BY effective_from DESC
LIMIT 1
`
	var cr CallRate
	err := r.db.QueryRowContext(ctx, q, callType, at).Scan(
		&cr.ID,
		&cr.CallType,
		&cr.RatePerMinute,
		&cr.MinimumCharge,
		&cr.EffectiveFrom,
		&cr.EffectiveTo,
		&cr.Status,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRate{}, false, nil
		}
		return CallRate{}, false, err
	}
	return cr, true, nil
}
