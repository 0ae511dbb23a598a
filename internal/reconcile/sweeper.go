package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"listenline/internal/billing"
	"listenline/internal/calls"
	"listenline/internal/presence"
)

// Sweeper force-settles calls that should have ended but are still marked
// ongoing: the caller's affordable window (busy_until) has passed, yet no
// billing insufficiency path or external end-call request ever finalized the
// row (crash, deploy, lost request).
//
// It uses the exact same finalizer CAS as every other path, so racing a
// concurrent billing tick or a late end-call request is safe: whichever wins
// settles exactly once, losers no-op.
type Sweeper struct {
	calls     calls.Store
	presence  presence.Store
	engine    *billing.Engine
	finalizer *calls.Finalizer

	log   *slog.Logger
	clock func() time.Time
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Scanned   int
	Expired   int
	Finalized int
	Errored   int
}

func NewSweeper(callStore calls.Store, presenceStore presence.Store, engine *billing.Engine, finalizer *calls.Finalizer, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		calls:     callStore,
		presence:  presenceStore,
		engine:    engine,
		finalizer: finalizer,
		log:       log,
		clock:     time.Now,
	}
}

// Run executes one sweep. The sweep always completes; per-call errors are
// counted and logged, never propagated to other calls.
func (s *Sweeper) Run(ctx context.Context) (SweepStats, error) {
	stats := SweepStats{}
	now := s.clock().UTC()

	ongoing, err := s.calls.ListOngoing(ctx)
	if err != nil {
		return stats, fmt.Errorf("list ongoing calls: %w", err)
	}

	for _, c := range ongoing {
		stats.Scanned++

		expired, err := s.isExpired(ctx, c, now)
		if err != nil {
			stats.Errored++
			s.log.Error("expiry check failed", "call_id", c.CallID, "err", err)
			continue
		}
		if !expired {
			continue
		}
		stats.Expired++

		settled, err := s.settleExpired(ctx, c, now)
		if err != nil {
			stats.Errored++
			s.log.Error("expired call settlement failed", "call_id", c.CallID, "err", err)
			continue
		}
		if settled {
			stats.Finalized++
		}
	}

	s.log.Info("reconciliation sweep",
		"scanned", stats.Scanned,
		"expired", stats.Expired,
		"finalized", stats.Finalized,
		"errored", stats.Errored,
	)
	return stats, nil
}

// isExpired reports whether either participant's busy window has passed.
// Calls whose participants have no presence rows never expire here; the
// billing insufficiency path still bounds them.
func (s *Sweeper) isExpired(ctx context.Context, c calls.Call, now time.Time) (bool, error) {
	for _, userID := range []string{c.CallerID, c.ListenerID} {
		st, err := s.presence.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, presence.ErrNotFound) {
				continue
			}
			return false, err
		}
		if st.BusyUntil != nil && st.BusyUntil.Before(now) {
			return true, nil
		}
	}
	return false, nil
}

// settleExpired reports whether this sweep performed the settlement. A call
// that turned terminal through another path (an end-call request, a
// concurrent billing tick, a lost finalize race) is not ours to count.
func (s *Sweeper) settleExpired(ctx context.Context, c calls.Call, now time.Time) (bool, error) {
	// Bill any whole minutes the billing engine missed, so the finalize
	// totals are the best known at sweep time. This may itself finalize the
	// call on the insufficiency path.
	outcome, _, err := s.engine.ProcessCall(ctx, c)
	if err != nil {
		s.log.Error("final billing step failed", "call_id", c.CallID, "err", err)
	}

	cur, err := s.calls.Get(ctx, c.CallID)
	if err != nil {
		return false, err
	}
	if cur.Status.Terminal() {
		return outcome == billing.OutcomeFinalized, nil
	}

	duration := int(now.Sub(cur.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	res, err := s.finalizer.TryFinalize(ctx, calls.FinalizeRequest{
		CallID:          cur.CallID,
		Reason:          calls.EndReasonExpired,
		CoinsSpent:      cur.CoinsSpent,
		DurationSeconds: duration,
	})
	if err != nil {
		return false, err
	}
	return res == calls.FinalizeWon, nil
}

// SetClock overrides the sweeper clock. Tests only.
func (s *Sweeper) SetClock(clock func() time.Time) { s.clock = clock }
