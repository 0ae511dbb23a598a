package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: call not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// FinalizePatch carries the terminal fields written by the winning
// finalization. CoinsSpent is applied with a monotonic floor: the stored
// value never decreases.
type FinalizePatch struct {
	Status          CallStatus
	Reason          EndReason
	EndTime         time.Time
	DurationSeconds int
	CoinsSpent      int64
}

// Store is the persistence contract for call records.
//
// The two conditional updates (ClaimBillableWindow, Finalize) are the
// concurrency primitives of the whole engine: both must be single atomic
// compare-and-swap statements so that any number of worker instances can
// race on the same row safely.
type Store interface {
	Get(ctx context.Context, callID string) (Call, error)

	// Create inserts a new ongoing call.
	Create(ctx context.Context, c Call) error

	// ListOngoing returns all calls with status = ongoing, oldest first.
	ListOngoing(ctx context.Context) ([]Call, error)

	// ClaimBillableWindow advances last_billed_at by advanceBy, but only if
	// the row is still ongoing and last_billed_at still equals observed.
	// Returns false when another instance claimed the window first (or the
	// call was finalized); claiming nothing is the idempotent no-op that
	// prevents double billing.
	ClaimBillableWindow(ctx context.Context, callID string, observed time.Time, advanceBy time.Duration, now time.Time) (bool, error)

	// AddCoinsSpent adds coins to coins_spent while the call is still
	// ongoing. Returns false if the call reached a terminal state first.
	AddCoinsSpent(ctx context.Context, callID string, coins int64, now time.Time) (bool, error)

	// Finalize transitions status from ongoing to patch.Status, but only if
	// the current status is still ongoing. Returns false when the call was
	// already finalized. The winning update sets end_time exactly once.
	Finalize(ctx context.Context, callID string, patch FinalizePatch) (bool, error)
}
