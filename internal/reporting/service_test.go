package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"listenline/internal/calls"
	"listenline/internal/ledger"
)

func TestReporting_CallHistoryCoversBothSides(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", CallerID: "u1", ListenerID: "u2", Status: calls.CallStatusCompleted, StartTime: now, DurationSeconds: 120, CoinsSpent: 20},
		{CallID: "c2", CallerID: "u2", ListenerID: "u3", Status: calls.CallStatusCompleted, StartTime: now, DurationSeconds: 60, CoinsSpent: 10},
		{CallID: "c3", CallerID: "u3", ListenerID: "u4", Status: calls.CallStatusCompleted, StartTime: now},
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.CallHistory(context.Background(), CallHistoryRequest{UserID: "u2", Range: rng})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected u2 in two calls, got %d", len(out))
	}
}

func TestReporting_CallHistoryHonorsLimit(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		repo.Calls = append(repo.Calls, calls.Call{
			CallID:    string(rune('a' + i)),
			CallerID:  "u1",
			StartTime: now,
		})
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.CallHistory(context.Background(), CallHistoryRequest{UserID: "u1", Range: rng, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
}

func TestReporting_EarningsSummary(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", CallerID: "a", ListenerID: "lis", Status: calls.CallStatusCompleted, StartTime: now, DurationSeconds: 120},
		{CallID: "c2", CallerID: "b", ListenerID: "lis", Status: calls.CallStatusDropped, StartTime: now, DurationSeconds: 45},
		{CallID: "c3", CallerID: "lis", ListenerID: "other", Status: calls.CallStatusCompleted, StartTime: now, DurationSeconds: 300},
	}
	repo.Txs = []ledger.CoinTransaction{
		{TxID: "t1", UserID: "lis", Amount: 16, Kind: ledger.TxKindEarn, RelatedCallID: "c1", CreatedAt: now},
		{TxID: "t2", UserID: "lis", Amount: 4, Kind: ledger.TxKindEarn, RelatedCallID: "c2", CreatedAt: now},
		{TxID: "t3", UserID: "lis", Amount: 100, Kind: ledger.TxKindPurchase, CreatedAt: now},
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.EarningsSummary(context.Background(), EarningsSummaryRequest{ListenerID: "lis", Range: rng})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 2 || out.CompletedCalls != 1 || out.DroppedCalls != 1 {
		t.Fatalf("unexpected call counts: %+v", out)
	}
	if out.TotalDurationSeconds != 165 {
		t.Fatalf("expected 165s listened, got %d", out.TotalDurationSeconds)
	}
	if out.CoinsEarned != 20 {
		t.Fatalf("only earn transactions count: got %d", out.CoinsEarned)
	}
}

func TestReporting_SpendSummary(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Txs = []ledger.CoinTransaction{
		{TxID: "t1", UserID: "u1", Amount: 100, Kind: ledger.TxKindPurchase, CreatedAt: now},
		{TxID: "t2", UserID: "u1", Amount: 5, Kind: ledger.TxKindBonus, CreatedAt: now},
		{TxID: "t3", UserID: "u1", Amount: -30, Kind: ledger.TxKindSpend, RelatedCallID: "c1", CreatedAt: now},
		{TxID: "t4", UserID: "u1", Amount: 8, Kind: ledger.TxKindEarn, RelatedCallID: "c2", CreatedAt: now},
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{UserID: "u1", Range: rng})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.CoinsPurchased != 105 || out.CoinsSpent != 30 || out.CoinsEarned != 8 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.NetDelta != 83 {
		t.Fatalf("expected net 83, got %d", out.NetDelta)
	}
}

func TestReporting_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.CallHistory(context.Background(), CallHistoryRequest{UserID: "u1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for zero range, got %v", err)
	}
	if _, err := svc.CallHistory(context.Background(), CallHistoryRequest{UserID: "u1", Range: TimeRange{From: now, To: now.Add(-time.Hour)}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for inverted range, got %v", err)
	}
	if _, err := svc.EarningsSummary(context.Background(), EarningsSummaryRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing listener, got %v", err)
	}
}
