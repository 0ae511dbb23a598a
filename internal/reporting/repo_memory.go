package reporting

import (
	"context"
	"sync"
	"time"

	"listenline/internal/calls"
	"listenline/internal/ledger"
)

// MemoryRepo is an in-memory reporting repository for tests and early
// development.
type MemoryRepo struct {
	mu sync.Mutex

	Calls []calls.Call
	Txs   []ledger.CoinTransaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCallsByParticipant(ctx context.Context, userID string, from, to time.Time, limit int) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.CallerID != userID && c.ListenerID != userID {
			continue
		}
		if !inRange(c.StartTime, from, to) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListCallsByListener(ctx context.Context, listenerID string, from, to time.Time) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.ListenerID != listenerID {
			continue
		}
		if !inRange(c.StartTime, from, to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]ledger.CoinTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.CoinTransaction, 0)
	for _, tx := range r.Txs {
		if tx.UserID != userID {
			continue
		}
		if !inRange(tx.CreatedAt, from, to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
