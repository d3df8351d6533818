// Package ratelimit implements fixed-window request counting keyed by an
// arbitrary identifier. Windows are per-key and independent.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Check call.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Store is the counter contract. The in-memory Limiter is the only
// implementation here; a distributed counter can sit behind the same interface.
type Store interface {
	Check(key string, max int, window time.Duration) Decision
	Sweep()
}

type entry struct {
	count int
	reset time.Time
}

// Limiter is an in-process fixed-window counter. Safe for concurrent use;
// the mutex makes each check an atomic read-modify-write, so two overlapping
// requests can never both slip past the limit on a stale count.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (l *Limiter) Check(key string, max int, window time.Duration) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.reset) {
		e = &entry{count: 1, reset: now.Add(window)}
		l.entries[key] = e
		return Decision{Allowed: true, Remaining: max - 1, Reset: e.reset}
	}

	e.count++
	remaining := max - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: e.count <= max, Remaining: remaining, Reset: e.reset}
}

// Sweep deletes entries whose window has expired. Live entries are never
// touched. Optional: expired entries are also replaced lazily on next Check.
func (l *Limiter) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.After(e.reset) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartSweeper runs Sweep every interval until the returned stop function is
// called. The stop function waits for the goroutine to exit.
func (l *Limiter) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
