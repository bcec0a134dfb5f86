// Package cachelock implements the process-local registry of per-key mutexes
// that the get-or-compute core uses to prevent cache stampedes: at most one
// factory invocation per key runs at a time within a process.
package cachelock

import (
	"context"
	"sync"
	"time"

	"github.com/Keksclan/rawrcache/cacheerr"
)

// entry is one registry slot: a FIFO-fair mutex plus a reference count used
// to know when it is safe to remove the slot.
type entry struct {
	mu   chan struct{} // 1-buffered channel used as a timeout-capable mutex
	refs int
}

func newEntry() *entry {
	e := &entry{mu: make(chan struct{}, 1)}
	e.mu <- struct{}{}
	return e
}

// Locks is a registry mapping key to entry. The registry itself is guarded
// by a short critical section around lookup/insert/remove; acquiring the
// per-key mutex never holds the registry lock, so a slow holder cannot block
// unrelated keys from being registered or released.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty lock registry.
func New() *Locks {
	return &Locks{entries: make(map[string]*entry)}
}

// Handle is the lock token returned by Acquire and TryAcquire. Release is idempotent:
// calling it more than once on the same Handle is a no-op after the first
// call.
type Handle struct {
	locks    *Locks
	key      string
	e        *entry
	released bool
}

// getOrCreate returns the existing entry for key or installs a fresh one,
// incrementing its refcount either way. Must be called with l.mu held.
func (l *Locks) getOrCreate(key string) *entry {
	if e, ok := l.entries[key]; ok {
		e.refs++
		return e
	}
	e := newEntry()
	e.refs = 1
	l.entries[key] = e
	return e
}

// Acquire blocks until the per-key mutex for key is held, ctx is done, or
// timeout elapses (timeout <= 0 means no timeout beyond ctx). On success it
// returns a Handle that must be released exactly once via [Handle.Release].
// On timeout or context cancellation it returns a *cacheerr.Error of kind
// KindLockTimeout and never leaks the registry slot.
func (l *Locks) Acquire(ctx context.Context, key string, timeout time.Duration) (*Handle, error) {
	l.mu.Lock()
	e := l.getOrCreate(key)
	l.mu.Unlock()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-e.mu:
		return &Handle{locks: l, key: key, e: e}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, cacheerr.New(cacheerr.KindLockTimeout, key, ctx.Err())
	case <-timeoutC:
		l.release(key, e)
		return nil, cacheerr.New(cacheerr.KindLockTimeout, key, context.DeadlineExceeded)
	}
}

// IsLocked reports whether key is currently held, without blocking and
// without registering a waiter. Used by the early-refresh probe (spec.md
// §4.4) to bow out when a foreground miss or another refresh is already in
// flight.
func (l *Locks) IsLocked(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.mu:
		// We took it uncontended; put it back and report unlocked.
		e.mu <- struct{}{}
		return false
	default:
		return true
	}
}

// TryAcquire attempts to take the per-key mutex without blocking. It reports
// false immediately if the key is already held. Used by the early-refresh
// task, which must never contend with a foreground caller.
func (l *Locks) TryAcquire(key string) (*Handle, bool) {
	l.mu.Lock()
	e := l.getOrCreate(key)
	l.mu.Unlock()

	select {
	case <-e.mu:
		return &Handle{locks: l, key: key, e: e}, true
	default:
		l.release(key, e)
		return nil, false
	}
}

// Release releases the mutex held by h and decrements the entry's refcount,
// removing the registry slot once it reaches zero. Safe to call multiple
// times; only the first call has an effect.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.e.mu <- struct{}{}
	h.locks.release(h.key, h.e)
}

// release decrements refs and removes the slot at zero. Guarded by the
// registry's own short critical section.
func (l *Locks) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs <= 0 {
		if cur, ok := l.entries[key]; ok && cur == e {
			delete(l.entries, key)
		}
	}
}
