// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package shutdown tears down the serve daemon's resources in reverse
// registration order when the process receives a stop signal.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stylus-tools/stylus-trace/internal/logger"
)

// Hook releases one resource. It must respect the context deadline; a hook
// that blocks past it forfeits the remaining budget of later hooks.
type Hook func(context.Context) error

type entry struct {
	name string
	hook Hook
}

// Sequence runs registered hooks exactly once, last registered first, so a
// resource is always released before anything it depends on.
type Sequence struct {
	mu      sync.Mutex
	entries []entry
	done    bool
}

// NewSequence returns an empty shutdown sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Register adds a named hook. Registrations after Run are ignored.
func (s *Sequence) Register(name string, hook Hook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.entries = append(s.entries, entry{name: name, hook: hook})
}

// Run executes all hooks in LIFO order and joins their errors. The context
// deadline, when present, is split evenly across the hooks still to run.
// Run is idempotent; second and later calls return nil without side effects.
func (s *Sequence) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	entries := make([]entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		hookCtx, cancel := budgetedContext(ctx, i+1)
		if err := e.hook(hookCtx); err != nil {
			logger.Logger.Warn("Shutdown hook failed", "hook", e.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
		cancel()
	}
	return errors.Join(errs...)
}

// budgetedContext gives one hook an even share of the time left before the
// parent deadline.
func budgetedContext(ctx context.Context, hooksRemaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || hooksRemaining <= 0 {
		return ctx, func() {}
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.WithTimeout(ctx, time.Millisecond)
	}
	share := remaining / time.Duration(hooksRemaining)
	if share <= 0 {
		share = remaining
	}
	return context.WithTimeout(ctx, share)
}
