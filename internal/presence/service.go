package presence

import (
	"context"
	"fmt"
	"time"
)

// Service wraps presence writes used by the boundary handlers and the call
// lifecycle.
type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// Heartbeat records user activity.
func (s *Service) Heartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	return s.store.Touch(ctx, userID, s.clock().UTC())
}

// Get returns the presence row for a user.
func (s *Service) Get(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, ErrInvalidArgument
	}
	return s.store.Get(ctx, userID)
}

// SetBothBusy flips busy state for both call participants. Used on call start
// (busy=true with the affordable window as busy_until) and by finalization
// (busy=false).
func (s *Service) SetBothBusy(ctx context.Context, callerID, listenerID string, busy bool, busyUntil *time.Time) error {
	if callerID == "" || listenerID == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	if err := s.store.SetBusy(ctx, callerID, busy, busyUntil, now); err != nil {
		return fmt.Errorf("presence: set busy for caller %s: %w", callerID, err)
	}
	if err := s.store.SetBusy(ctx, listenerID, busy, busyUntil, now); err != nil {
		return fmt.Errorf("presence: set busy for listener %s: %w", listenerID, err)
	}
	return nil
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }
