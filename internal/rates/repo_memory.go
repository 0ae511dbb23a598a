package rates

import (
	"context"
	"time"
)

// MemoryRepo is a simple in-memory rate table useful for tests, early
// development, and deployments that only need the built-in audio/video rates.
type MemoryRepo struct {
	Rates []CallRate
}

func NewMemoryRepo(rates []CallRate) *MemoryRepo {
	return &MemoryRepo{Rates: rates}
}

func (r *MemoryRepo) FindRate(ctx context.Context, callType string, at time.Time) (CallRate, bool, error) {
	_ = ctx

	// Prefer the most recently effective rate.
	var best CallRate
	found := false

	for _, cr := range r.Rates {
		if cr.CallType != callType {
			continue
		}
		if cr.Status != RateStatusActive {
			continue
		}
		if !cr.EffectiveFrom.IsZero() && at.Before(cr.EffectiveFrom) {
			continue
		}
		if cr.EffectiveTo != nil && !at.Before(*cr.EffectiveTo) {
			continue
		}

		if !found || cr.EffectiveFrom.After(best.EffectiveFrom) {
			best = cr
			found = true
		}
	}

	return best, found, nil
}
