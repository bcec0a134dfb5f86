package cachestack

import (
	"context"
	"time"

	"github.com/Keksclan/rawrcache/cacheevent"
	"github.com/Keksclan/rawrcache/telemetry"
)

// Get reads key as a raw passthrough: L1 first, then L2 (promoting the
// value back into L1 on an L2 hit). Unlike the get-or-compute path, these
// operations do not go through the CacheItem envelope — no logical expiry,
// no stampede protection — they are direct passthroughs over the driver
// interface, per spec.md §1.
func (s *CacheStack) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.l1 != nil {
		if v, ok, err := s.l1.Get(ctx, key); err != nil {
			return nil, false, err
		} else if ok {
			return v, true, nil
		}
	}
	if s.l2 != nil {
		v, ok, err := s.l2.Get(ctx, key)
		if err != nil || !ok {
			return nil, false, err
		}
		if s.l1 != nil {
			_ = s.l1.Set(ctx, key, v, 0)
		}
		return v, true, nil
	}
	return nil, false, nil
}

// Set writes val under key with ttl to L2 then L1. An L2 write failure is
// logged as a non-fatal warning and does not prevent the L1 write; an L1
// write failure is returned to the caller, per spec.md §4.2.
func (s *CacheStack) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if s.l2 != nil {
		if err := s.l2.Set(ctx, key, val, ttl); err != nil {
			s.Logger.Log(ctx, telemetry.LevelWarn, "l2 write failed, continuing with l1", "key", key, "cache", s.Name, "error", err)
		}
	}
	if s.l1 != nil {
		return s.l1.Set(ctx, key, val, ttl)
	}
	return nil
}

// Has reports presence in L1 or L2.
func (s *CacheStack) Has(ctx context.Context, key string) (bool, error) {
	if s.l1 != nil {
		if ok, err := s.l1.Has(ctx, key); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	if s.l2 != nil {
		return s.l2.Has(ctx, key)
	}
	return false, nil
}

// Delete removes key from both tiers, emitting cache.deleted.
func (s *CacheStack) Delete(ctx context.Context, key string) error {
	var l1err, l2err error
	if s.l2 != nil {
		if l2err = s.l2.Delete(ctx, key); l2err == nil {
			s.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindDeleted, Key: key, Store: "l2"})
		}
	}
	if s.l1 != nil {
		if l1err = s.l1.Delete(ctx, key); l1err == nil {
			s.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindDeleted, Key: key, Store: "l1"})
		}
	}
	if l1err != nil {
		return l1err
	}
	return l2err
}

// Pull gets and deletes key, checking L1 first then L2.
func (s *CacheStack) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	if s.l1 != nil {
		if v, ok, err := s.l1.Pull(ctx, key); err != nil {
			return nil, false, err
		} else if ok {
			if s.l2 != nil {
				_ = s.l2.Delete(ctx, key)
			}
			return v, true, nil
		}
	}
	if s.l2 != nil {
		return s.l2.Pull(ctx, key)
	}
	return nil, false, nil
}

// Clear empties both tiers.
func (s *CacheStack) Clear(ctx context.Context) error {
	var l1err, l2err error
	if s.l2 != nil {
		l2err = s.l2.Clear(ctx)
	}
	if s.l1 != nil {
		l1err = s.l1.Clear(ctx)
	}
	if l1err != nil {
		return l1err
	}
	return l2err
}
