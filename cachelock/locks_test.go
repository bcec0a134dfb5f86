package cachelock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/rawrcache/cacheerr"
)

func TestAcquireRelease_SameKeySerializes(t *testing.T) {
	l := New()
	ctx := t.Context()

	h1, err := l.Acquire(ctx, "k", 0)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		h2, err := l.Acquire(ctx, "k", time.Second)
		if err != nil {
			t.Errorf("second acquire: %v", err)
			return
		}
		close(acquired)
		h2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the first handle was still held")
	case <-time.After(30 * time.Millisecond):
	}

	h1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquire_DifferentKeysDoNotContend(t *testing.T) {
	l := New()
	ctx := t.Context()

	h1, err := l.Acquire(ctx, "a", 0)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer h1.Release()

	h2, err := l.Acquire(ctx, "b", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire b should not be blocked by a: %v", err)
	}
	h2.Release()
}

func TestAcquire_TimesOutAndReturnsLockTimeoutError(t *testing.T) {
	l := New()
	ctx := t.Context()

	h1, err := l.Acquire(ctx, "k", 0)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer h1.Release()

	_, err = l.Acquire(ctx, "k", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !cacheerr.Is(err, cacheerr.KindLockTimeout) {
		t.Fatalf("expected KindLockTimeout, got %v", err)
	}
}

func TestRelease_IsIdempotent(t *testing.T) {
	l := New()
	h, err := l.Acquire(t.Context(), "k", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	h.Release()
	h.Release() // must not panic or double-unblock a waiter

	h2, err := l.Acquire(t.Context(), "k", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("re-acquire after idempotent release: %v", err)
	}
	h2.Release()
}

func TestTryAcquire_FailsWhenHeld(t *testing.T) {
	l := New()
	h1, err := l.Acquire(t.Context(), "k", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h1.Release()

	if _, ok := l.TryAcquire("k"); ok {
		t.Fatal("TryAcquire should fail while the key is held")
	}
}

func TestTryAcquire_SucceedsWhenFree(t *testing.T) {
	l := New()
	h, ok := l.TryAcquire("k")
	if !ok {
		t.Fatal("TryAcquire should succeed on a free key")
	}
	h.Release()
}

func TestIsLocked(t *testing.T) {
	l := New()
	if l.IsLocked("k") {
		t.Fatal("unregistered key should not report locked")
	}

	h, err := l.Acquire(t.Context(), "k", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !l.IsLocked("k") {
		t.Fatal("expected key to report locked while held")
	}
	h.Release()

	if l.IsLocked("k") {
		t.Fatal("expected key to report unlocked after release")
	}
}

func TestLocks_RegistrySlotIsRemovedAfterRelease(t *testing.T) {
	l := New()
	h, err := l.Acquire(t.Context(), "gc-key", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	h.Release()

	l.mu.Lock()
	_, present := l.entries["gc-key"]
	l.mu.Unlock()
	if present {
		t.Fatal("expected the registry slot to be garbage collected after the last release")
	}
}

func TestLocks_ConcurrentStampedeOnSameKey(t *testing.T) {
	l := New()
	var running int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := l.Acquire(t.Context(), "stampede", time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxConcurrent)
				if n <= cur || atomic.CompareAndSwapInt32(&maxConcurrent, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			h.Release()
		}()
	}
	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("expected at most 1 concurrent holder of the same key, saw %d", maxConcurrent)
	}
}
