package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service provides wallet operations on top of a Store.
//
// Money invariants:
// - No balance update without a transaction row.
// - The transaction log is append-only (immutable).
// - InsufficientFunds is a normal, expected outcome for debits.
type Service struct {
	store Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// ApplyDelta applies a signed coin delta to a user's wallet as one atomic
// transaction and returns the updated wallet plus the appended row.
// Negative deltas that would take the balance below zero fail with
// ErrInsufficientFunds.
func (s *Service) ApplyDelta(ctx context.Context, userID string, amount int64, kind TxKind, relatedCallID string) (Wallet, CoinTransaction, error) {
	if userID == "" || amount == 0 || !kind.Valid() {
		return Wallet{}, CoinTransaction{}, ErrInvalidArgument
	}

	txn := CoinTransaction{
		TxID:          uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Kind:          kind,
		RelatedCallID: relatedCallID,
		CreatedAt:     s.clock().UTC(),
	}
	w, err := s.store.Apply(ctx, txn)
	if err != nil {
		return Wallet{}, CoinTransaction{}, err
	}
	return w, txn, nil
}

// DebitUpTo debits min(balance, maxAmount) coins, down to zero, and returns
// the amount actually debited. This is the partial-settlement primitive used
// when a caller cannot cover a whole billed amount.
func (s *Service) DebitUpTo(ctx context.Context, userID string, maxAmount int64, kind TxKind, relatedCallID string) (int64, error) {
	if userID == "" || maxAmount <= 0 || !kind.Valid() {
		return 0, ErrInvalidArgument
	}

	txn := CoinTransaction{
		TxID:          uuid.NewString(),
		UserID:        userID,
		Kind:          kind,
		RelatedCallID: relatedCallID,
		CreatedAt:     s.clock().UTC(),
	}
	return s.store.DebitUpTo(ctx, txn, maxAmount)
}

// Balance returns the user's wallet, or ErrNotFound if no coin-bearing action
// has created one yet.
func (s *Service) Balance(ctx context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidArgument
	}
	return s.store.GetWallet(ctx, userID)
}

// BalanceOrZero is Balance with a zero wallet for unknown users; several
// callers treat "no wallet yet" as a zero balance.
func (s *Service) BalanceOrZero(ctx context.Context, userID string) (Wallet, error) {
	w, err := s.Balance(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Wallet{UserID: userID}, nil
	}
	return w, err
}

// TransactionsForCall exposes the per-call audit trail.
func (s *Service) TransactionsForCall(ctx context.Context, callID string) ([]CoinTransaction, error) {
	if callID == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.TransactionsForCall(ctx, callID)
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }
