package presence

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler is the periodic safety net for presence state: it marks silent
// users offline and clears busy flags whose window has passed. Call
// finalization clears busy proactively; this sweep covers crashes and missed
// events.
//
// Multiple reconciler instances may run concurrently; both sweeps are single
// conditional bulk updates, so duplicates are harmless.
type Reconciler struct {
	store Store

	// InactivityThreshold is how long after last_seen a user is still
	// considered online.
	InactivityThreshold time.Duration

	log   *slog.Logger
	clock func() time.Time
}

// ReconcileStats summarizes one reconciler pass.
type ReconcileStats struct {
	MarkedOffline int64
	BusyCleared   int64
}

func NewReconciler(store Store, inactivityThreshold time.Duration, log *slog.Logger) *Reconciler {
	if inactivityThreshold <= 0 {
		inactivityThreshold = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:               store,
		InactivityThreshold: inactivityThreshold,
		log:                 log,
		clock:               time.Now,
	}
}

// Run executes one pass. Partial failures still report the counts of the
// sweep that succeeded.
func (r *Reconciler) Run(ctx context.Context) (ReconcileStats, error) {
	now := r.clock().UTC()
	stats := ReconcileStats{}

	offline, err := r.store.MarkInactiveOffline(ctx, now.Add(-r.InactivityThreshold), now)
	if err != nil {
		return stats, err
	}
	stats.MarkedOffline = offline

	cleared, err := r.store.ClearExpiredBusy(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.BusyCleared = cleared

	r.log.Info("presence reconcile pass",
		"marked_offline", stats.MarkedOffline,
		"busy_cleared", stats.BusyCleared,
	)
	return stats, nil
}

// SetClock overrides the reconciler clock. Tests only.
func (r *Reconciler) SetClock(clock func() time.Time) { r.clock = clock }
