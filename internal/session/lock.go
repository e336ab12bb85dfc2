package session

import (
	"context"
	"sync"
)

// critSection is the per-session cooperative critical section guarding all
// state-mutating operations (spec.md §5: "a fair, reentry-forbidding mutex
// supporting suspension"). Reentry is permitted, but only along the
// original acquirer's own continuation: a nested call carrying the ctx
// returned by an outer Acquire is let through without blocking, while any
// other caller -- including one on the same goroutine starting a fresh
// call chain -- queues behind the mutex like normal (spec.md §9 DESIGN
// NOTES: "reentrant single-holder mutex whose reentry is scoped to the
// original acquirer's continuation").
type critSection struct {
	mu sync.Mutex
}

type critSectionKey struct{ s *critSection }

// acquire blocks until the section is free, unless ctx already carries this
// section's token (a nested call within the same continuation), in which
// case it returns immediately. The returned ctx carries the token for any
// further nested calls; release must always be called exactly once, and is
// a no-op when alreadyHeld is true (the outer acquirer unlocks).
func (c *critSection) acquire(ctx context.Context) (next context.Context, release func(), alreadyHeld bool) {
	if v, ok := ctx.Value(critSectionKey{s: c}).(bool); ok && v {
		return ctx, func() {}, true
	}
	c.mu.Lock()
	return context.WithValue(ctx, critSectionKey{s: c}, true), c.mu.Unlock, false
}
