package rates

import (
	"context"
	"time"
)

// ChainRepo tries each repository in order and returns the first match.
// It lets a deployment overlay database-managed rates on top of the
// config defaults.
type ChainRepo struct {
	repos []Repository
}

func Chain(repos ...Repository) *ChainRepo { return &ChainRepo{repos: repos} }

func (c *ChainRepo) FindRate(ctx context.Context, callType string, at time.Time) (CallRate, bool, error) {
	for _, r := range c.repos {
		rate, ok, err := r.FindRate(ctx, callType, at)
		if err != nil {
			return CallRate{}, false, err
		}
		if ok {
			return rate, true, nil
		}
	}
	return CallRate{}, false, nil
}
