package audit

import "time"

// Flag is an immutable, append-only record of an entity the background
// workers could not settle automatically and parked for manual review.
//
// Invariants:
// - Flags are never updated or deleted.
// - Flagging is best-effort; sweeps must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table reconcile_flags with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.

type Flag struct {
	ID string `json:"id" db:"id"`

	// Type indicates the category of the flag.
	Type FlagType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the flag type).
	CallID string `json:"call_id,omitempty" db:"call_id"`
	UserID string `json:"user_id,omitempty" db:"user_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type FlagType string

const (
	// FlagTypeUnknownRate marks a call skipped because no active rate exists
	// for its call type.
	FlagTypeUnknownRate FlagType = "unknown_rate"

	// FlagTypeClaimedUnbilled marks minutes that were claimed via the
	// last_billed_at advance but never debited because the ledger call
	// failed afterwards.
	FlagTypeClaimedUnbilled FlagType = "claimed_unbilled"
)
