package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"listenline/internal/audit"
	"listenline/internal/calls"
	"listenline/internal/ledger"
	"listenline/internal/rates"
)

// Engine meters ongoing calls by the minute.
//
// Idempotence and multi-instance safety come from two properties:
// - Whole elapsed minutes are "claimed" with a conditional advance of
//   last_billed_at before any money moves; a duplicate tick observes either
//   zero elapsed minutes or a lost claim and bills nothing.
// - All money movement goes through atomic ledger transactions, and the
//   terminal transition goes through the finalizer CAS.
//
// Per-call failures are isolated: one bad call never aborts the pass.
type Engine struct {
	calls     calls.Store
	ledger    *ledger.Service
	rates     *rates.Service
	finalizer *calls.Finalizer
	split     SplitPolicy

	// Optional collaborators; nil-safe.
	cache *calls.Cache
	flags *audit.Service

	log   *slog.Logger
	clock func() time.Time
}

func NewEngine(callStore calls.Store, ledgerSvc *ledger.Service, rateSvc *rates.Service, finalizer *calls.Finalizer, split SplitPolicy, log *slog.Logger) *Engine {
	if split == nil {
		split = PassThrough()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		calls:     callStore,
		ledger:    ledgerSvc,
		rates:     rateSvc,
		finalizer: finalizer,
		split:     split,
		log:       log,
		clock:     time.Now,
	}
}

// WithCache attaches the Redis call mirror.
func (e *Engine) WithCache(c *calls.Cache) *Engine { e.cache = c; return e }

// WithFlags attaches the reconcile-flag recorder.
func (e *Engine) WithFlags(a *audit.Service) *Engine { e.flags = a; return e }

// Outcome classifies one call's processing in a pass.
type Outcome int

const (
	// OutcomeSkipped: no whole minute elapsed, or another instance claimed
	// the window first. Nothing was billed.
	OutcomeSkipped Outcome = iota
	// OutcomeBilled: whole elapsed minutes billed in full.
	OutcomeBilled
	// OutcomeFinalized: the caller could not cover the owed amount; a
	// partial settlement was taken and finalization was attempted.
	OutcomeFinalized
)

// PassStats summarizes one billing pass.
type PassStats struct {
	Processed   int
	Billed      int
	Finalized   int
	Skipped     int
	Errored     int
	CoinsBilled int64
}

// Run executes one billing pass over every ongoing call.
// The pass always completes; per-call errors are counted and logged.
func (e *Engine) Run(ctx context.Context) (PassStats, error) {
	stats := PassStats{}

	ongoing, err := e.calls.ListOngoing(ctx)
	if err != nil {
		return stats, fmt.Errorf("list ongoing calls: %w", err)
	}
	if len(ongoing) == 0 {
		e.log.Debug("no ongoing calls to bill")
		return stats, nil
	}

	for _, c := range ongoing {
		stats.Processed++
		outcome, billed, err := e.ProcessCall(ctx, c)
		if err != nil {
			stats.Errored++
			e.log.Error("billing call failed", "call_id", c.CallID, "err", err)
			continue
		}
		stats.CoinsBilled += billed
		switch outcome {
		case OutcomeBilled:
			stats.Billed++
		case OutcomeFinalized:
			stats.Finalized++
		default:
			stats.Skipped++
		}
	}

	e.log.Info("billing pass",
		"processed", stats.Processed,
		"billed", stats.Billed,
		"finalized", stats.Finalized,
		"skipped", stats.Skipped,
		"errored", stats.Errored,
		"coins_billed", stats.CoinsBilled,
	)
	return stats, nil
}

// ProcessCall bills one ongoing call for its whole elapsed minutes.
// Also used by the reconciliation sweeper to settle last minutes before
// force-finalizing an expired call.
func (e *Engine) ProcessCall(ctx context.Context, c calls.Call) (Outcome, int64, error) {
	now := e.clock().UTC()

	elapsed := int64(now.Sub(c.LastBilledAt) / time.Minute)
	if elapsed <= 0 {
		return OutcomeSkipped, 0, nil
	}

	rate, err := e.rates.RateFor(ctx, string(c.CallType), now)
	if err != nil {
		if errors.Is(err, rates.ErrRateNotFound) {
			// Configuration error: never guess a price. Park the call for
			// manual review and keep the worker alive.
			if e.flags != nil {
				_ = e.flags.FlagUnknownRate(ctx, c.CallID, string(c.CallType))
			}
			return OutcomeSkipped, 0, fmt.Errorf("no rate for call type %q: %w", c.CallType, err)
		}
		return OutcomeSkipped, 0, err
	}

	// Claim the minutes before touching money. A lost claim means another
	// instance billed this window (or the call just finalized); either way
	// billing again would double-charge.
	claimed, err := e.calls.ClaimBillableWindow(ctx, c.CallID, c.LastBilledAt, time.Duration(elapsed)*time.Minute, now)
	if err != nil {
		return OutcomeSkipped, 0, fmt.Errorf("claim billable window: %w", err)
	}
	if !claimed {
		return OutcomeSkipped, 0, nil
	}

	owed := elapsed * rate.RatePerMinute

	debited, err := e.ledger.DebitUpTo(ctx, c.CallerID, owed, ledger.TxKindSpend, c.CallID)
	if err != nil {
		// Minutes were claimed but not billed; never re-billed (the claim
		// advanced), so record the gap for manual reconciliation.
		if e.flags != nil {
			_ = e.flags.FlagClaimedUnbilled(ctx, c.CallID, c.CallerID,
				fmt.Sprintf("debit of %d coins failed after claiming %d minutes", owed, elapsed))
		}
		return OutcomeSkipped, 0, fmt.Errorf("debit caller: %w", err)
	}

	total := c.CoinsSpent + debited
	if debited > 0 {
		if _, err := e.calls.AddCoinsSpent(ctx, c.CallID, debited, now); err != nil {
			e.log.Error("coins_spent update failed", "call_id", c.CallID, "err", err)
		}
		// Mirror the stored total, not the snapshot: c can be stale by the
		// time the debit lands, and a failed update above must not be
		// papered over in the cache.
		if cur, err := e.calls.Get(ctx, c.CallID); err != nil {
			e.log.Warn("coins_spent read back failed", "call_id", c.CallID, "err", err)
		} else {
			total = cur.CoinsSpent
			if !cur.Status.Terminal() {
				if err := e.cache.UpdateCoinsSpent(ctx, c.CallID, total); err != nil {
					e.log.Warn("call cache update failed", "call_id", c.CallID, "err", err)
				}
			}
		}
	}

	share := e.split(debited)

	if debited == owed {
		if share > 0 {
			if _, _, err := e.ledger.ApplyDelta(ctx, c.ListenerID, share, ledger.TxKindEarn, c.CallID); err != nil {
				if e.flags != nil {
					_ = e.flags.FlagClaimedUnbilled(ctx, c.CallID, c.ListenerID,
						fmt.Sprintf("listener credit of %d coins failed", share))
				}
				return OutcomeBilled, debited, fmt.Errorf("credit listener: %w", err)
			}
		}
		e.log.Debug("billed call minutes",
			"call_id", c.CallID, "minutes", elapsed, "coins", debited, "listener_share", share)
		return OutcomeBilled, debited, nil
	}

	// The caller could not cover the owed amount. The partial is already
	// taken; the listener's partial share rides on the finalize request so
	// that exactly the CAS winner credits it.
	duration := int(now.Sub(c.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	e.log.Info("caller out of coins, finalizing",
		"call_id", c.CallID,
		"caller_id", c.CallerID,
		"owed", owed,
		"debited", debited,
	)

	res, err := e.finalizer.TryFinalize(ctx, calls.FinalizeRequest{
		CallID:          c.CallID,
		Reason:          calls.EndReasonInsufficientCoins,
		CoinsSpent:      total,
		DurationSeconds: duration,
		ListenerEarned:  share,
	})
	if err != nil {
		return OutcomeFinalized, debited, err
	}
	if res == calls.FinalizeAlreadyFinalized && share > 0 {
		// Another process settled first; our partial share was never
		// credited. Flag it rather than risking a double credit.
		if e.flags != nil {
			_ = e.flags.FlagClaimedUnbilled(ctx, c.CallID, c.ListenerID,
				fmt.Sprintf("partial listener share of %d coins lost finalize race", share))
		}
	}
	return OutcomeFinalized, debited, nil
}

// SetClock overrides the engine clock. Tests only.
func (e *Engine) SetClock(clock func() time.Time) { e.clock = clock }
