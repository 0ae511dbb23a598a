package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for reconcile flags.
//
// It MUST be append-only. No Update/Delete methods exist.

type Repository interface {
	Append(ctx context.Context, f Flag) error
}

// Service records reconciliation flags for manual review.
//
// Callers should treat flagging as best-effort: a failed append is logged by
// the caller and never aborts a billing or sweep pass.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidFlag = errors.New("audit: invalid flag")

func (s *Service) Append(ctx context.Context, f Flag) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if f.Type == "" {
		return ErrInvalidFlag
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, f)
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// FlagUnknownRate records a call skipped because its call type has no rate.
func (s *Service) FlagUnknownRate(ctx context.Context, callID, callType string) error {
	return s.Append(ctx, Flag{
		Type:    FlagTypeUnknownRate,
		CallID:  callID,
		Message: "no active rate for call type " + callType,
	})
}

// FlagClaimedUnbilled records minutes claimed for billing whose debit failed.
func (s *Service) FlagClaimedUnbilled(ctx context.Context, callID, userID, detail string) error {
	return s.Append(ctx, Flag{
		Type:    FlagTypeClaimedUnbilled,
		CallID:  callID,
		UserID:  userID,
		Message: detail,
	})
}
