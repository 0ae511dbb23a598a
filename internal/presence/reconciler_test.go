package presence

import (
	"context"
	"testing"
	"time"
)

func TestReconciler_MarksStaleUsersOffline(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	// stale: last heartbeat six minutes ago; fresh: two minutes ago
	if err := store.Touch(ctx, "stale", now.Add(-6*time.Minute)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := store.Touch(ctx, "fresh", now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	r := NewReconciler(store, 5*time.Minute, nil)
	r.SetClock(func() time.Time { return now })

	stats, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.MarkedOffline != 1 {
		t.Fatalf("expected 1 marked offline, got %d", stats.MarkedOffline)
	}

	stale, _ := store.Get(ctx, "stale")
	if stale.IsOnline {
		t.Fatal("stale user should be offline")
	}
	fresh, _ := store.Get(ctx, "fresh")
	if !fresh.IsOnline {
		t.Fatal("fresh user should stay online")
	}
}

func TestReconciler_ClearsExpiredBusyOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	expired := now.Add(-time.Minute)
	active := now.Add(10 * time.Minute)
	if err := store.SetBusy(ctx, "expired", true, &expired, now.Add(-time.Hour)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := store.SetBusy(ctx, "active", true, &active, now.Add(-time.Hour)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// busy with no window: cleared only by call finalization
	if err := store.SetBusy(ctx, "pinned", true, nil, now.Add(-time.Hour)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	r := NewReconciler(store, 5*time.Minute, nil)
	r.SetClock(func() time.Time { return now })

	stats, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.BusyCleared != 1 {
		t.Fatalf("expected 1 busy cleared, got %d", stats.BusyCleared)
	}

	cleared, _ := store.Get(ctx, "expired")
	if cleared.IsBusy || cleared.BusyUntil != nil {
		t.Fatalf("expected expired busy cleared, got %+v", cleared)
	}
	for _, id := range []string{"active", "pinned"} {
		st, _ := store.Get(ctx, id)
		if !st.IsBusy {
			t.Fatalf("expected %s still busy", id)
		}
	}
}

func TestService_HeartbeatBringsUserOnline(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	now := time.Unix(1700000000, 0).UTC()
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := svc.Heartbeat(ctx, "u1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	st, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !st.IsOnline || !st.LastSeen.Equal(now) {
		t.Fatalf("unexpected status: %+v", st)
	}

	if err := svc.Heartbeat(ctx, ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestService_SetBothBusy(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	now := time.Unix(1700000000, 0).UTC()
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()

	until := now.Add(4 * time.Minute)
	if err := svc.SetBothBusy(ctx, "caller", "listener", true, &until); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, id := range []string{"caller", "listener"} {
		st, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !st.IsBusy || st.BusyUntil == nil || !st.BusyUntil.Equal(until) {
			t.Fatalf("unexpected status for %s: %+v", id, st)
		}
		// going busy also counts as activity
		if !st.IsOnline {
			t.Fatalf("expected %s online", id)
		}
	}

	if err := svc.SetBothBusy(ctx, "caller", "listener", false, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	st, _ := svc.Get(ctx, "caller")
	if st.IsBusy || st.BusyUntil != nil {
		t.Fatalf("expected busy cleared, got %+v", st)
	}
}
