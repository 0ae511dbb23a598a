package calls

import "time"

// Call represents one caller/listener call session.
//
// Invariants:
// - Status transitions only ongoing -> {completed, dropped}, never reversed.
// - CoinsSpent never decreases.
// - EndTime is set exactly once, at the same instant the status becomes
//   terminal.
// - LastBilledAt strictly increases; the billing claim is a conditional
//   update against the previously observed value.
//
// Money invariant reminder: usage charging references CallID in the coin
// ledger (related_call_id) rather than being derivable from this row alone.
type Call struct {
	CallID     string `json:"call_id" db:"call_id"`
	CallerID   string `json:"caller_id" db:"caller_id"`
	ListenerID string `json:"listener_id" db:"listener_id"`

	CallType CallType   `json:"call_type" db:"call_type"`
	Status   CallStatus `json:"status" db:"status"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	// LastBilledAt is the boundary up to which the caller has been charged.
	// Initialized to StartTime.
	LastBilledAt time.Time `json:"last_billed_at" db:"last_billed_at"`

	CoinsSpent int64 `json:"coins_spent" db:"coins_spent"`

	// DurationSeconds is set only at termination.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// EndReason is set only at termination.
	EndReason EndReason `json:"end_reason,omitempty" db:"end_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type CallStatus string

const (
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusCompleted CallStatus = "completed"
	CallStatusDropped   CallStatus = "dropped"
)

// Terminal reports whether s has no outgoing transitions.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusDropped
}

// EndReason records why a call left the ongoing state.
type EndReason string

const (
	// EndReasonCompleted is a graceful participant-initiated end.
	EndReasonCompleted EndReason = "completed"
	// EndReasonInsufficientCoins means the caller ran out of coins mid-call.
	EndReasonInsufficientCoins EndReason = "insufficient_coins"
	// EndReasonExpired means the reconciliation sweep force-settled a call
	// that overran its allotted window.
	EndReasonExpired EndReason = "expired"
	// EndReasonDropped is an abnormal end (technical failure).
	EndReasonDropped EndReason = "dropped"
)

// StatusFor maps an end reason to the terminal status it produces.
func (r EndReason) StatusFor() CallStatus {
	if r == EndReasonCompleted {
		return CallStatusCompleted
	}
	return CallStatusDropped
}

// FinalizeResult is the outcome of a TryFinalize attempt.
type FinalizeResult int

const (
	// FinalizeWon means this caller performed the settlement.
	FinalizeWon FinalizeResult = iota
	// FinalizeAlreadyFinalized means another process settled the call first.
	// This is the expected outcome of the race, not an error.
	FinalizeAlreadyFinalized
)

func (r FinalizeResult) String() string {
	if r == FinalizeWon {
		return "won"
	}
	return "already_finalized"
}
