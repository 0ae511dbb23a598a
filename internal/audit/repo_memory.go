package audit

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu    sync.Mutex
	flags []Flag
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, f Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags = append(r.flags, f)
	return nil
}

func (r *MemoryRepo) Flags() []Flag {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Flag, len(r.flags))
	copy(out, r.flags)
	return out
}
