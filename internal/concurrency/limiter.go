// Package concurrency provides the process-wide resource bound on
// in-flight upstream model calls. Adapted from the host project's
// channel-backed semaphore: a single buffered channel of permits, with a
// mutex-guarded counter kept alongside it for observability.
package concurrency

import (
	"context"
	"sync"
)

// Limiter bounds the number of concurrent holders of a resource. It is
// constructed once per process and shared by every ModelClient call site.
type Limiter struct {
	permits chan struct{}
	mu      sync.Mutex
	max     int
	held    int
}

// NewLimiter creates a Limiter allowing up to max concurrent holders.
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		max = 1
	}
	return &Limiter{
		permits: make(chan struct{}, max),
		max:     max,
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.permits <- struct{}{}:
		l.mu.Lock()
		l.held++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool. It is a no-op when no permit is
// checked out; permits are not tied to their holder, so an unmatched
// Release while other permits are held frees one of those.
func (l *Limiter) Release() {
	select {
	case <-l.permits:
		l.mu.Lock()
		if l.held > 0 {
			l.held--
		}
		l.mu.Unlock()
	default:
	}
}

// Held reports the number of permits currently checked out.
func (l *Limiter) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Available reports the number of permits not currently checked out.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max - l.held
}

// Max reports the limiter's configured capacity.
func (l *Limiter) Max() int {
	return l.max
}
