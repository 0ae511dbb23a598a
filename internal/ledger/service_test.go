package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Unix(1700000000, 0).UTC() }
}

func TestLedger_ApplyDeltaCreatesWallet(t *testing.T) {
	svc := NewService(NewMemoryStore())
	svc.SetClock(fixedClock())

	w, tx, err := svc.ApplyDelta(context.Background(), "u1", 100, TxKindPurchase, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if w.BalanceCoins != 100 {
		t.Fatalf("expected balance 100, got %d", w.BalanceCoins)
	}
	if tx.Amount != 100 || tx.Kind != TxKindPurchase || tx.TxID == "" {
		t.Fatalf("unexpected tx: %+v", tx)
	}
}

func TestLedger_BalanceNeverNegative(t *testing.T) {
	svc := NewService(NewMemoryStore())
	svc.SetClock(fixedClock())
	ctx := context.Background()

	if _, _, err := svc.ApplyDelta(ctx, "u1", 50, TxKindPurchase, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, _, err := svc.ApplyDelta(ctx, "u1", -51, TxKindSpend, "c1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	w, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if w.BalanceCoins != 50 {
		t.Fatalf("failed debit must not move balance: got %d", w.BalanceCoins)
	}
}

func TestLedger_DebitFromUnknownWallet(t *testing.T) {
	svc := NewService(NewMemoryStore())
	svc.SetClock(fixedClock())

	if _, _, err := svc.ApplyDelta(context.Background(), "ghost", -10, TxKindSpend, "c1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestLedger_DebitUpToPartial(t *testing.T) {
	svc := NewService(NewMemoryStore())
	svc.SetClock(fixedClock())
	ctx := context.Background()

	if _, _, err := svc.ApplyDelta(ctx, "u1", 45, TxKindPurchase, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	got, err := svc.DebitUpTo(ctx, "u1", 60, TxKindSpend, "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 45 {
		t.Fatalf("expected partial debit of 45, got %d", got)
	}

	w, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if w.BalanceCoins != 0 {
		t.Fatalf("expected drained balance, got %d", w.BalanceCoins)
	}

	// second attempt is a no-op, never negative
	got, err = svc.DebitUpTo(ctx, "u1", 60, TxKindSpend, "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected zero debit from empty wallet, got %d", got)
	}
}

func TestLedger_DebitUpToFullWhenCovered(t *testing.T) {
	svc := NewService(NewMemoryStore())
	svc.SetClock(fixedClock())
	ctx := context.Background()

	if _, _, err := svc.ApplyDelta(ctx, "u1", 200, TxKindPurchase, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := svc.DebitUpTo(ctx, "u1", 60, TxKindSpend, "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 60 {
		t.Fatalf("expected full debit of 60, got %d", got)
	}
}

func TestLedger_BalanceEqualsTransactionSum(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	svc.SetClock(fixedClock())
	ctx := context.Background()

	deltas := []struct {
		amount int64
		kind   TxKind
	}{
		{100, TxKindPurchase},
		{-30, TxKindSpend},
		{24, TxKindEarn},
		{-10, TxKindWithdrawal},
		{5, TxKindBonus},
	}
	for _, d := range deltas {
		if _, _, err := svc.ApplyDelta(ctx, "u1", d.amount, d.kind, "c1"); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	txs, err := svc.TransactionsForCall(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	w, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if w.BalanceCoins != sum {
		t.Fatalf("balance %d does not match tx sum %d", w.BalanceCoins, sum)
	}
	if w.TotalEarned != 24 || w.TotalSpent != 40 {
		t.Fatalf("unexpected totals: %+v", w)
	}
}

func TestLedger_BalanceOrZero(t *testing.T) {
	svc := NewService(NewMemoryStore())

	w, err := svc.BalanceOrZero(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if w.UserID != "nobody" || w.BalanceCoins != 0 {
		t.Fatalf("expected zero wallet, got %+v", w)
	}
}

func TestLedger_RejectsInvalidInput(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, _, err := svc.ApplyDelta(ctx, "", 10, TxKindPurchase, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.ApplyDelta(ctx, "u1", 0, TxKindPurchase, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.ApplyDelta(ctx, "u1", 10, TxKind("gift"), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.DebitUpTo(ctx, "u1", 0, TxKindSpend, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
