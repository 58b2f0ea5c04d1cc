package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when an import slot cannot be acquired
// within the configured wait time.
var ErrTooManyImports = errors.New("too many concurrent imports, try again later")

// ImportLimiter bounds the number of import pipelines running at once.
//
// It is a counting semaphore with a bounded wait: callers block up to
// maxWait for a slot, then fail fast so HTTP clients get a clear 429
// instead of a hung request. WaitForDrain supports graceful shutdown.
type ImportLimiter struct {
	sem     chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
}

// NewImportLimiter creates a limiter allowing maxConcurrent imports,
// with acquisition attempts waiting at most maxWait.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ImportLimiter{
		sem:     make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, the wait budget is exhausted,
// or the context is cancelled. Every successful Acquire must be paired
// with a Release.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrTooManyImports
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire.
func (l *ImportLimiter) Release() {
	select {
	case <-l.sem:
		l.mu.Lock()
		if l.active > 0 {
			l.active--
		}
		l.mu.Unlock()
	default:
		// Release without a matching Acquire is a programming error;
		// ignore rather than block.
	}
}

// ActiveCount returns the number of imports currently running.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Status reports current usage for health endpoints and logs.
func (l *ImportLimiter) Status() (active, capacity int) {
	return l.ActiveCount(), cap(l.sem)
}

// WaitForDrain blocks until no imports remain active or the timeout
// elapses. Returns true if fully drained.
func (l *ImportLimiter) WaitForDrain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if l.ActiveCount() == 0 {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return l.ActiveCount() == 0
}
