package rates

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateNotFound   = errors.New("rates: rate not found")
	ErrInvalidRequest = errors.New("rates: invalid request")
)

// Repository is the lookup contract for call rates.
type Repository interface {
	// FindRate returns the rate effective for callType at the given instant.
	FindRate(ctx context.Context, callType string, at time.Time) (CallRate, bool, error)
}

// Service resolves per-minute coin rates for call types.
//
// A missing rate for an ongoing call's type is a configuration error: callers
// must skip the call and flag it for manual reconciliation rather than guess
// a price.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RateFor returns the effective rate for callType at the given time.
// A zero `at` uses the service clock.
func (s *Service) RateFor(ctx context.Context, callType string, at time.Time) (CallRate, error) {
	if callType == "" {
		return CallRate{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallRate{}, errors.New("rates: repository not configured")
	}
	if at.IsZero() {
		at = s.clock().UTC()
	}

	r, ok, err := s.repo.FindRate(ctx, callType, at)
	if err != nil {
		return CallRate{}, err
	}
	if !ok {
		return CallRate{}, ErrRateNotFound
	}
	return r, nil
}
