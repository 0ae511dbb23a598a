package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store useful for tests and early development.
// A single mutex serializes all money operations, which satisfies the Store
// serialization contract trivially.
//
// NOTE: Not intended for production; use PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[string]Wallet
	txs     []CoinTransaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[string]Wallet)}
}

func (s *MemoryStore) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) Apply(ctx context.Context, txn CoinTransaction) (Wallet, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[txn.UserID]
	if !ok {
		if txn.Amount < 0 {
			return Wallet{}, ErrInsufficientFunds
		}
		w = Wallet{UserID: txn.UserID, CreatedAt: txn.CreatedAt}
	}
	if txn.Amount < 0 && w.BalanceCoins+txn.Amount < 0 {
		return Wallet{}, ErrInsufficientFunds
	}

	s.applyLocked(&w, txn)
	return w, nil
}

func (s *MemoryStore) DebitUpTo(ctx context.Context, txn CoinTransaction, maxAmount int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[txn.UserID]
	if !ok {
		return 0, nil
	}

	debited := maxAmount
	if w.BalanceCoins < debited {
		debited = w.BalanceCoins
	}
	if debited <= 0 {
		return 0, nil
	}

	txn.Amount = -debited
	s.applyLocked(&w, txn)
	return debited, nil
}

func (s *MemoryStore) TransactionsForCall(ctx context.Context, callID string) ([]CoinTransaction, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CoinTransaction
	for _, t := range s.txs {
		if t.RelatedCallID == callID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) applyLocked(w *Wallet, txn CoinTransaction) {
	w.BalanceCoins += txn.Amount
	if txn.Kind == TxKindEarn {
		w.TotalEarned += txn.Amount
	}
	if txn.Amount < 0 {
		w.TotalSpent += -txn.Amount
	}
	w.UpdatedAt = txn.CreatedAt

	s.wallets[txn.UserID] = *w
	s.txs = append(s.txs, txn)
}
