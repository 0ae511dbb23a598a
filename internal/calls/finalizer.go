package calls

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"listenline/internal/audit"
	"listenline/internal/ledger"
	"listenline/internal/presence"
)

// FinalizeRequest carries everything the winning settlement writes.
type FinalizeRequest struct {
	CallID string
	Reason EndReason

	// CoinsSpent and DurationSeconds are the best-known totals at the time
	// of the attempt. CoinsSpent is applied with a monotonic floor.
	CoinsSpent      int64
	DurationSeconds int

	// ListenerEarned is a not-yet-settled listener credit. Exactly the
	// winner applies it, which keeps a partial-minute credit from being
	// posted twice when several processes observe the same insufficiency.
	ListenerEarned int64
}

// SettlementEvent is published once per finalized call.
type SettlementEvent struct {
	CallID          string    `json:"call_id"`
	CallerID        string    `json:"caller_id"`
	ListenerID      string    `json:"listener_id"`
	CallType        string    `json:"call_type"`
	Reason          string    `json:"reason"`
	CoinsSpent      int64     `json:"coins_spent"`
	ListenerEarned  int64     `json:"listener_earned"`
	DurationSeconds int       `json:"duration_seconds"`
	EndedAt         time.Time `json:"ended_at"`
}

// EventPublisher publishes settlement events. Implementations must be safe
// for concurrent use; publishing is best-effort.
type EventPublisher interface {
	PublishSettlement(ctx context.Context, ev SettlementEvent) error
}

// SlotReleaser frees a listener's ongoing-call slot. Optional.
type SlotReleaser func(ctx context.Context, listenerID string) error

// Finalizer is the call lifecycle manager: the single primitive through
// which every path (billing insufficiency, reconciliation sweep, external
// call-end) moves a call from ongoing to a terminal state.
//
// The terminal transition is one conditional update; at most one concurrent
// caller wins, and only the winner performs the side effects (listener
// credit, presence clear, cache delete, settlement event). Losing is the
// expected outcome of the race and is logged at info level, never retried.
type Finalizer struct {
	store    Store
	ledger   *ledger.Service
	presence *presence.Service

	// Optional collaborators; all nil-safe.
	cache       *Cache
	events      EventPublisher
	flags       *audit.Service
	releaseSlot SlotReleaser

	log   *slog.Logger
	clock func() time.Time
}

func NewFinalizer(store Store, ledgerSvc *ledger.Service, presenceSvc *presence.Service, log *slog.Logger) *Finalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Finalizer{
		store:    store,
		ledger:   ledgerSvc,
		presence: presenceSvc,
		log:      log,
		clock:    time.Now,
	}
}

// WithCache attaches the Redis call mirror.
func (f *Finalizer) WithCache(c *Cache) *Finalizer { f.cache = c; return f }

// WithEvents attaches the settlement event publisher.
func (f *Finalizer) WithEvents(p EventPublisher) *Finalizer { f.events = p; return f }

// WithFlags attaches the reconcile-flag recorder.
func (f *Finalizer) WithFlags(a *audit.Service) *Finalizer { f.flags = a; return f }

// WithSlotReleaser attaches the listener call-slot release hook.
func (f *Finalizer) WithSlotReleaser(r SlotReleaser) *Finalizer { f.releaseSlot = r; return f }

// TryFinalize attempts the ongoing->terminal transition for callID.
//
// Errors are returned only for infrastructure failures before the transition
// is decided. Once the CAS has committed, side-effect failures are logged
// and flagged but the result is still FinalizeWon: the terminal state is
// durable and the presence reconciler / manual review cover the rest.
func (f *Finalizer) TryFinalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error) {
	if req.CallID == "" || req.Reason == "" {
		return FinalizeAlreadyFinalized, ErrInvalidArgument
	}

	c, err := f.store.Get(ctx, req.CallID)
	if err != nil {
		return FinalizeAlreadyFinalized, err
	}
	if c.Status.Terminal() {
		f.log.Info("call already finalized",
			"call_id", req.CallID, "reason", string(req.Reason), "status", string(c.Status))
		return FinalizeAlreadyFinalized, nil
	}

	now := f.clock().UTC()
	patch := FinalizePatch{
		Status:          req.Reason.StatusFor(),
		Reason:          req.Reason,
		EndTime:         now,
		DurationSeconds: req.DurationSeconds,
		CoinsSpent:      req.CoinsSpent,
	}

	won, err := f.store.Finalize(ctx, req.CallID, patch)
	if err != nil {
		return FinalizeAlreadyFinalized, fmt.Errorf("finalize call %s: %w", req.CallID, err)
	}
	if !won {
		// Another process settled the call between our read and the CAS.
		f.log.Info("lost finalize race",
			"call_id", req.CallID, "reason", string(req.Reason))
		return FinalizeAlreadyFinalized, nil
	}

	f.applySideEffects(ctx, c, req, now)
	f.log.Info("call finalized",
		"call_id", req.CallID,
		"reason", string(req.Reason),
		"status", string(patch.Status),
		"coins_spent", req.CoinsSpent,
		"duration_seconds", req.DurationSeconds,
	)
	return FinalizeWon, nil
}

func (f *Finalizer) applySideEffects(ctx context.Context, c Call, req FinalizeRequest, endedAt time.Time) {
	if req.ListenerEarned > 0 {
		if _, _, err := f.ledger.ApplyDelta(ctx, c.ListenerID, req.ListenerEarned, ledger.TxKindEarn, c.CallID); err != nil {
			f.log.Error("listener credit failed after finalize",
				"call_id", c.CallID, "listener_id", c.ListenerID, "amount", req.ListenerEarned, "err", err)
			if f.flags != nil {
				_ = f.flags.FlagClaimedUnbilled(ctx, c.CallID, c.ListenerID,
					fmt.Sprintf("listener credit of %d coins failed at finalize", req.ListenerEarned))
			}
		}
	}

	if err := f.presence.SetBothBusy(ctx, c.CallerID, c.ListenerID, false, nil); err != nil {
		// The presence reconciler sweep is the safety net for this.
		f.log.Error("busy clear failed after finalize", "call_id", c.CallID, "err", err)
	}

	if err := f.cache.Delete(ctx, c.CallID); err != nil {
		f.log.Warn("call cache delete failed", "call_id", c.CallID, "err", err)
	}

	if f.releaseSlot != nil {
		if err := f.releaseSlot(ctx, c.ListenerID); err != nil {
			f.log.Warn("listener slot release failed", "call_id", c.CallID, "listener_id", c.ListenerID, "err", err)
		}
	}

	if f.events != nil {
		ev := SettlementEvent{
			CallID:          c.CallID,
			CallerID:        c.CallerID,
			ListenerID:      c.ListenerID,
			CallType:        string(c.CallType),
			Reason:          string(req.Reason),
			CoinsSpent:      req.CoinsSpent,
			ListenerEarned:  req.ListenerEarned,
			DurationSeconds: req.DurationSeconds,
			EndedAt:         endedAt,
		}
		if err := f.events.PublishSettlement(ctx, ev); err != nil {
			f.log.Warn("settlement event publish failed", "call_id", c.CallID, "err", err)
		}
	}
}

// SetClock overrides the finalizer clock. Tests only.
func (f *Finalizer) SetClock(clock func() time.Time) { f.clock = clock }
