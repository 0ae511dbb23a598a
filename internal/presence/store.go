package presence

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("presence: status not found")
	ErrInvalidArgument = errors.New("presence: invalid argument")
)

// Store is the persistence contract for presence state.
// All writes are per-user atomic updates; the two sweep methods are single
// bulk statements so overlapping reconciler instances stay safe.
type Store interface {
	Get(ctx context.Context, userID string) (Status, error)

	// Touch records a heartbeat: is_online=true, last_seen=now. Creates the
	// row if absent.
	Touch(ctx context.Context, userID string, now time.Time) error

	// SetBusy flips the busy flag. Entering busy also refreshes
	// online/last_seen, since being on a call implies activity. Creates the
	// row if absent.
	SetBusy(ctx context.Context, userID string, busy bool, busyUntil *time.Time, now time.Time) error

	// MarkInactiveOffline sets is_online=false for users whose last_seen is
	// before cutoff. Returns the number of rows changed.
	MarkInactiveOffline(ctx context.Context, cutoff, now time.Time) (int64, error)

	// ClearExpiredBusy clears is_busy/busy_until where busy_until has passed.
	// Rows with a nil busy_until are left alone. Returns rows changed.
	ClearExpiredBusy(ctx context.Context, now time.Time) (int64, error)
}
