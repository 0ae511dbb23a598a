package presence

import "time"

// Status is one user's presence row.
//
// Invariant: IsBusy with a nil BusyUntil means "busy indefinitely until
// explicitly cleared by call end". The reconciler only clears busy flags
// whose BusyUntil has passed.
type Status struct {
	UserID   string    `json:"user_id" db:"user_id"`
	IsOnline bool      `json:"is_online" db:"is_online"`
	LastSeen time.Time `json:"last_seen" db:"last_seen"`

	IsBusy    bool       `json:"is_busy" db:"is_busy"`
	BusyUntil *time.Time `json:"busy_until,omitempty" db:"busy_until"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
