package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store useful for tests and early development.
// The mutex makes every method atomic, which matches the CAS contract of the
// conditional updates.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Call)}
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (Call, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Create(ctx context.Context, c Call) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[c.CallID] = c
	return nil
}

func (s *MemoryStore) ListOngoing(ctx context.Context) ([]Call, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.rows {
		if c.Status == CallStatusOngoing {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) ClaimBillableWindow(ctx context.Context, callID string, observed time.Time, advanceBy time.Duration, now time.Time) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[callID]
	if !ok || c.Status != CallStatusOngoing || !c.LastBilledAt.Equal(observed) {
		return false, nil
	}
	c.LastBilledAt = c.LastBilledAt.Add(advanceBy)
	c.UpdatedAt = now
	s.rows[callID] = c
	return true, nil
}

func (s *MemoryStore) AddCoinsSpent(ctx context.Context, callID string, coins int64, now time.Time) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[callID]
	if !ok || c.Status != CallStatusOngoing {
		return false, nil
	}
	c.CoinsSpent += coins
	c.UpdatedAt = now
	s.rows[callID] = c
	return true, nil
}

func (s *MemoryStore) Finalize(ctx context.Context, callID string, patch FinalizePatch) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[callID]
	if !ok || c.Status != CallStatusOngoing {
		return false, nil
	}
	c.Status = patch.Status
	c.EndReason = patch.Reason
	end := patch.EndTime
	c.EndTime = &end
	c.DurationSeconds = patch.DurationSeconds
	if patch.CoinsSpent > c.CoinsSpent {
		c.CoinsSpent = patch.CoinsSpent
	}
	c.UpdatedAt = patch.EndTime
	s.rows[callID] = c
	return true, nil
}
