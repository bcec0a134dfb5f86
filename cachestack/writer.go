package cachestack

import (
	"context"
	"fmt"
	"time"

	"github.com/Keksclan/rawrcache/cacheerr"
	"github.com/Keksclan/rawrcache/cacheevent"
	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/telemetry"
)

// Writer implements the write-through policy of spec.md §4.2: build a
// CacheItem from the value and options, serialize it, write L2 (if
// present) with physical TTL, then write L1 (if present). An L2 write
// failure never prevents the L1 write; L1 failures are fatal.
type Writer struct {
	stack *CacheStack
}

// NewWriter builds a Writer over stack.
func NewWriter(stack *CacheStack) *Writer {
	return &Writer{stack: stack}
}

// Set constructs a CacheItem from value+opts, then writes it through L2
// then L1. now is injected for deterministic tests.
func (w *Writer) Set(ctx context.Context, key string, value []byte, opts cacheitem.Options, now time.Time) (cacheitem.Item, error) {
	item := cacheitem.New(key, value, opts, now)
	return item, w.write(ctx, item, now)
}

// WriteItem writes a pre-built item through, used by Stage F's fallback
// rewrite where the item already exists and only needs to be persisted
// again.
func (w *Writer) WriteItem(ctx context.Context, item cacheitem.Item, now time.Time) error {
	return w.write(ctx, item, now)
}

func (w *Writer) write(ctx context.Context, item cacheitem.Item, now time.Time) error {
	s := w.stack

	if s.HasL2() {
		if err := s.L2Set(ctx, item, now); err != nil {
			s.Logger.Log(ctx, telemetry.LevelWarn, "l2 write failed, local value remains authoritative",
				"key", item.Key, "cache", s.Name, "error", err)
		} else {
			s.Metrics.ObserveWrite("l2")
			s.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindWritten, Key: item.Key, Store: "l2"})
		}
	}

	if s.HasL1() {
		if err := s.L1Set(ctx, item, now); err != nil {
			return cacheerr.New(cacheerr.KindDriverError, item.Key, fmt.Errorf("l1 write: %w", err))
		}
		s.Metrics.ObserveWrite("l1")
		s.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindWritten, Key: item.Key, Store: "l1"})
	}

	return nil
}
