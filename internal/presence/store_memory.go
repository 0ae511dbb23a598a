package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store useful for tests and early development.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Status)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Status, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rows[userID]
	if !ok {
		return Status{}, ErrNotFound
	}
	return st, nil
}

func (s *MemoryStore) Touch(ctx context.Context, userID string, now time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.rows[userID]
	st.UserID = userID
	st.IsOnline = true
	st.LastSeen = now
	st.UpdatedAt = now
	s.rows[userID] = st
	return nil
}

func (s *MemoryStore) SetBusy(ctx context.Context, userID string, busy bool, busyUntil *time.Time, now time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rows[userID]
	if !ok {
		if !busy {
			return nil
		}
		st = Status{UserID: userID}
	}
	st.UserID = userID
	st.IsBusy = busy
	st.UpdatedAt = now
	if busy {
		st.IsOnline = true
		st.LastSeen = now
		st.BusyUntil = busyUntil
	} else {
		st.BusyUntil = nil
	}
	s.rows[userID] = st
	return nil
}

func (s *MemoryStore) MarkInactiveOffline(ctx context.Context, cutoff, now time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, st := range s.rows {
		if st.IsOnline && st.LastSeen.Before(cutoff) {
			st.IsOnline = false
			st.UpdatedAt = now
			s.rows[id] = st
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClearExpiredBusy(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, st := range s.rows {
		if st.IsBusy && st.BusyUntil != nil && st.BusyUntil.Before(now) {
			st.IsBusy = false
			st.BusyUntil = nil
			st.UpdatedAt = now
			s.rows[id] = st
			n++
		}
	}
	return n, nil
}
