// Package cachestack is the thin façade owning the L1/L2 driver pair, named
// per spec.md §3 ("CacheStack — ordered pair (l1?, l2?) at least one
// present; named; owns a logger and an event emitter"). It also implements
// the non-get-or-compute passthrough operations (spec.md §1: get, set,
// delete, has, clear, pull) that the core protocol does not touch, and
// CacheStackWriter (spec.md §4.2), grounded on the teacher's
// cache/tiered.go read/write shape.
package cachestack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/cachedriver"
	"github.com/Keksclan/rawrcache/cacheevent"
	"github.com/Keksclan/rawrcache/telemetry"
)

// ErrNoTiers is returned by New when neither l1 nor l2 is supplied.
// spec.md §9 leaves the both-absent case undefined and assumes
// configuration validation rejects it upstream; this is that validation.
var ErrNoTiers = errors.New("cachestack: at least one of L1 or L2 must be configured")

// CacheStack is an ordered L1/L2 driver pair with a uniform read/write
// surface. Read order is L1 then L2; write order is L2 then L1
// (spec.md §3, §5 guarantee 1).
type CacheStack struct {
	Name string

	l1 cachedriver.Driver
	l2 cachedriver.Driver

	Logger  telemetry.Logger
	Emitter *cacheevent.Emitter
	Metrics *telemetry.Metrics
}

// Option configures a CacheStack at construction time.
type Option func(*CacheStack)

// WithL1 sets the in-process tier.
func WithL1(d cachedriver.Driver) Option { return func(s *CacheStack) { s.l1 = d } }

// WithL2 sets the shared tier.
func WithL2(d cachedriver.Driver) Option { return func(s *CacheStack) { s.l2 = d } }

// WithLogger overrides the default no-op logger.
func WithLogger(l telemetry.Logger) Option { return func(s *CacheStack) { s.Logger = l } }

// WithEmitter overrides the default internal emitter.
func WithEmitter(e *cacheevent.Emitter) Option { return func(s *CacheStack) { s.Emitter = e } }

// WithMetrics attaches a Metrics sink.
func WithMetrics(m *telemetry.Metrics) Option { return func(s *CacheStack) { s.Metrics = m } }

// New builds a CacheStack. name identifies the stack in logs/traces. At
// least one of WithL1/WithL2 must be supplied.
func New(name string, opts ...Option) (*CacheStack, error) {
	s := &CacheStack{
		Name:    name,
		Logger:  telemetry.NoopLogger{},
		Emitter: cacheevent.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.l1 == nil && s.l2 == nil {
		return nil, ErrNoTiers
	}
	return s, nil
}

// HasL1 reports whether an L1 tier is configured.
func (s *CacheStack) HasL1() bool { return s.l1 != nil }

// HasL2 reports whether an L2 tier is configured.
func (s *CacheStack) HasL2() bool { return s.l2 != nil }

// L1Get reads key from L1 and deserializes it into an Item. A
// deserialization error is treated as a miss (logged), per spec.md §4.5.
func (s *CacheStack) L1Get(ctx context.Context, key string) (cacheitem.Item, bool, error) {
	return s.tierGet(ctx, s.l1, "l1", key)
}

// L2Get reads key from L2 and deserializes it into an Item.
func (s *CacheStack) L2Get(ctx context.Context, key string) (cacheitem.Item, bool, error) {
	return s.tierGet(ctx, s.l2, "l2", key)
}

func (s *CacheStack) tierGet(ctx context.Context, d cachedriver.Driver, store, key string) (cacheitem.Item, bool, error) {
	if d == nil {
		return cacheitem.Item{}, false, nil
	}
	raw, ok, err := d.Get(ctx, key)
	if err != nil {
		if store == "l1" {
			return cacheitem.Item{}, false, fmt.Errorf("cachestack: l1 get %q: %w", key, err)
		}
		// L2 errors on read are treated as a miss, per spec.md §7.
		s.Logger.Log(ctx, telemetry.LevelWarn, "l2 read failed, treating as miss", "key", key, "cache", s.Name, "error", err)
		return cacheitem.Item{}, false, nil
	}
	if !ok {
		return cacheitem.Item{}, false, nil
	}
	item, err := cacheitem.Decode(key, raw)
	if err != nil {
		s.Logger.Log(ctx, telemetry.LevelWarn, "item deserialization failed, treating as miss", "key", key, "cache", s.Name, "store", store, "error", err)
		return cacheitem.Item{}, false, nil
	}
	return item, true, nil
}

// L1Set writes item to L1 with its remaining physical TTL.
func (s *CacheStack) L1Set(ctx context.Context, item cacheitem.Item, now time.Time) error {
	return s.tierSet(ctx, s.l1, item, now)
}

// L2Set writes item to L2 with its remaining physical TTL.
func (s *CacheStack) L2Set(ctx context.Context, item cacheitem.Item, now time.Time) error {
	return s.tierSet(ctx, s.l2, item, now)
}

func (s *CacheStack) tierSet(ctx context.Context, d cachedriver.Driver, item cacheitem.Item, now time.Time) error {
	if d == nil {
		return nil
	}
	enc, err := item.Encode()
	if err != nil {
		return fmt.Errorf("cachestack: encode item %q: %w", item.Key, err)
	}
	return d.Set(ctx, item.Key, enc, item.RemainingTTL(now))
}
