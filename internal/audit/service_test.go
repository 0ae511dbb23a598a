package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Flag{CallID: "c1"}); !errors.Is(err, ErrInvalidFlag) {
		t.Fatalf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestService_AppendFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	svc.SetClock(func() time.Time { return now })

	if err := svc.Append(context.Background(), Flag{Type: FlagTypeUnknownRate, CallID: "c1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	flags := repo.Flags()
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	if flags[0].ID == "" {
		t.Fatal("expected generated id")
	}
	if !flags[0].CreatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", flags[0].CreatedAt)
	}
}

func TestService_FlagHelpers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.FlagUnknownRate(ctx, "c1", "group"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.FlagClaimedUnbilled(ctx, "c2", "u1", "debit of 30 coins failed after claiming 3 minutes"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	flags := repo.Flags()
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
	if flags[0].Type != FlagTypeUnknownRate || flags[0].CallID != "c1" {
		t.Fatalf("unexpected first flag: %+v", flags[0])
	}
	if flags[1].Type != FlagTypeClaimedUnbilled || flags[1].UserID != "u1" {
		t.Fatalf("unexpected second flag: %+v", flags[1])
	}
}
