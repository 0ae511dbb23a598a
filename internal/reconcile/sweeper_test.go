package reconcile

import (
	"context"
	"testing"
	"time"

	"listenline/internal/billing"
	"listenline/internal/calls"
	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/rates"
)

type fixture struct {
	sweeper   *Sweeper
	engine    *billing.Engine
	finalizer *calls.Finalizer
	calls     *calls.MemoryStore
	presence  *presence.MemoryStore
	ledger    *ledger.Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	callStore := calls.NewMemoryStore()
	presenceStore := presence.NewMemoryStore()
	ledgerSvc := ledger.NewService(ledger.NewMemoryStore())
	presenceSvc := presence.NewService(presenceStore)
	rateSvc := rates.NewService(rates.NewMemoryRepo(rates.Defaults(10, 60)))

	finalizer := calls.NewFinalizer(callStore, ledgerSvc, presenceSvc, nil)
	engine := billing.NewEngine(callStore, ledgerSvc, rateSvc, finalizer, billing.PercentSplit(20), nil)
	sweeper := NewSweeper(callStore, presenceStore, engine, finalizer, nil)

	fx := &fixture{
		sweeper:   sweeper,
		engine:    engine,
		finalizer: finalizer,
		calls:     callStore,
		presence:  presenceStore,
		ledger:    ledgerSvc,
		now:       time.Unix(1700000000, 0).UTC(),
	}
	fx.setNow(fx.now)
	return fx
}

func (fx *fixture) setNow(now time.Time) {
	fx.now = now
	clock := func() time.Time { return now }
	fx.sweeper.SetClock(clock)
	fx.engine.SetClock(clock)
	fx.finalizer.SetClock(clock)
}

// seedCall creates an ongoing call whose participants are busy until
// start+window, with the caller funded for the full window.
func (fx *fixture) seedCall(t *testing.T, callID string, window time.Duration) calls.Call {
	t.Helper()
	ctx := context.Background()

	if _, _, err := fx.ledger.ApplyDelta(ctx, "caller-"+callID, 10*int64(window/time.Minute), ledger.TxKindPurchase, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c := calls.Call{
		CallID:       callID,
		CallerID:     "caller-" + callID,
		ListenerID:   "listener-" + callID,
		CallType:     calls.CallTypeAudio,
		Status:       calls.CallStatusOngoing,
		StartTime:    fx.now,
		LastBilledAt: fx.now,
	}
	if err := fx.calls.Create(ctx, c); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	until := fx.now.Add(window)
	for _, id := range []string{c.CallerID, c.ListenerID} {
		if err := fx.presence.SetBusy(ctx, id, true, &until, fx.now); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	return c
}

func TestSweeper_FinalizesExpiredCall(t *testing.T) {
	fx := newFixture(t)
	start := fx.now
	c := fx.seedCall(t, "c1", 3*time.Minute)
	ctx := context.Background()

	// billing keeps up while the call runs
	for i := 1; i <= 3; i++ {
		fx.setNow(start.Add(time.Duration(i) * time.Minute))
		if _, err := fx.engine.Run(ctx); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	// the busy window passed and nobody ended the call
	fx.setNow(start.Add(3*time.Minute + 30*time.Second))

	stats, err := fx.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Scanned != 1 || stats.Expired != 1 || stats.Finalized != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got, _ := fx.calls.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusDropped || got.EndReason != calls.EndReasonExpired {
		t.Fatalf("unexpected terminal state: %+v", got)
	}
	if got.DurationSeconds != 210 {
		t.Fatalf("expected 210s duration, got %d", got.DurationSeconds)
	}
	caller, _ := fx.ledger.Balance(ctx, c.CallerID)
	if caller.BalanceCoins != 0 {
		t.Fatalf("expected drained caller, got %d", caller.BalanceCoins)
	}
	if got.CoinsSpent != 30 {
		t.Fatalf("expected 30 coins metered, got %d", got.CoinsSpent)
	}

	// busy flags cleared by the settlement
	st, err := fx.presence.Get(ctx, c.ListenerID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if st.IsBusy {
		t.Fatal("listener should be free after forced settlement")
	}
}

func TestSweeper_BillsMissedMinutesBeforeSettling(t *testing.T) {
	fx := newFixture(t)
	start := fx.now
	c := fx.seedCall(t, "c1", 3*time.Minute)
	ctx := context.Background()

	// no billing pass ever ran; the sweep catches up on the missed
	// minutes and the insufficiency path settles the call
	fx.setNow(start.Add(4 * time.Minute))

	stats, err := fx.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Expired != 1 || stats.Finalized != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got, _ := fx.calls.Get(ctx, c.CallID)
	if !got.Status.Terminal() {
		t.Fatalf("expected settled call, got %+v", got)
	}
	// 4 elapsed minutes owe 40 but only 30 were funded
	if got.EndReason != calls.EndReasonInsufficientCoins {
		t.Fatalf("expected insufficiency settlement, got %s", got.EndReason)
	}
	if got.CoinsSpent != 30 {
		t.Fatalf("expected 30 coins metered, got %d", got.CoinsSpent)
	}
	caller, _ := fx.ledger.Balance(ctx, c.CallerID)
	if caller.BalanceCoins != 0 {
		t.Fatalf("expected drained caller, got %d", caller.BalanceCoins)
	}
}

func TestSweeper_LeavesActiveCallsAlone(t *testing.T) {
	fx := newFixture(t)
	c := fx.seedCall(t, "c1", 10*time.Minute)
	ctx := context.Background()

	fx.setNow(fx.now.Add(2 * time.Minute))

	stats, err := fx.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Expired != 0 || stats.Finalized != 0 {
		t.Fatalf("active call must not be swept: %+v", stats)
	}
	got, _ := fx.calls.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusOngoing {
		t.Fatalf("expected still ongoing, got %s", got.Status)
	}
}

func TestSweeper_SkipsCallsWithoutPresence(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	c := calls.Call{
		CallID:       "orphan",
		CallerID:     "nobody-a",
		ListenerID:   "nobody-b",
		CallType:     calls.CallTypeAudio,
		Status:       calls.CallStatusOngoing,
		StartTime:    fx.now,
		LastBilledAt: fx.now,
	}
	if err := fx.calls.Create(ctx, c); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	fx.setNow(fx.now.Add(time.Hour))

	stats, err := fx.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Expired != 0 {
		t.Fatalf("calls without presence rows never expire here: %+v", stats)
	}
}

func TestSweeper_DoesNotCountSettlementsByOthers(t *testing.T) {
	fx := newFixture(t)
	c := fx.seedCall(t, "c1", 3*time.Minute)
	ctx := context.Background()

	fx.setNow(fx.now.Add(5 * time.Minute))

	// snapshot taken while the call was still ongoing
	snapshot, err := fx.calls.Get(ctx, c.CallID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// an end-call request lands after the snapshot, before the settlement
	if _, err := fx.finalizer.TryFinalize(ctx, calls.FinalizeRequest{
		CallID:          c.CallID,
		Reason:          calls.EndReasonCompleted,
		DurationSeconds: 300,
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	settled, err := fx.sweeper.settleExpired(ctx, snapshot, fx.now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if settled {
		t.Fatal("a settlement performed by another path must not be counted")
	}
	got, _ := fx.calls.Get(ctx, c.CallID)
	if got.EndReason != calls.EndReasonCompleted {
		t.Fatalf("original settlement must stand, got %+v", got)
	}
}

func TestSweeper_RaceWithEndCallSettlesOnce(t *testing.T) {
	fx := newFixture(t)
	c := fx.seedCall(t, "c1", 3*time.Minute)
	ctx := context.Background()

	fx.setNow(fx.now.Add(5 * time.Minute))

	// a late end-call request wins just before the sweep
	if _, err := fx.finalizer.TryFinalize(ctx, calls.FinalizeRequest{
		CallID:          c.CallID,
		Reason:          calls.EndReasonCompleted,
		DurationSeconds: 300,
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	stats, err := fx.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Finalized != 0 {
		t.Fatalf("sweeper must not settle a terminal call: %+v", stats)
	}
	got, _ := fx.calls.Get(ctx, c.CallID)
	if got.EndReason != calls.EndReasonCompleted {
		t.Fatalf("original settlement must stand, got %+v", got)
	}
}
