package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends reconcile_flags rows. Insert-only by contract.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, f Flag) error {
	const q = `
INSERT INTO reconcile_flags (id, type, call_id, user_id, message, metadata, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
`
	_, err := r.db.ExecContext(ctx, q,
		f.ID,
		f.Type,
		f.CallID,
		f.UserID,
		f.Message,
		f.Metadata,
		f.CreatedAt,
	)
	return err
}
