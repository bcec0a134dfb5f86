package cachecore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/rawrcache/cacheerr"
	"github.com/Keksclan/rawrcache/cacheevent"
	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/cachelock"
	"github.com/Keksclan/rawrcache/cachestack"
	"github.com/Keksclan/rawrcache/telemetry"
)

// GetSetHandler is the get-or-compute orchestrator: it assembles the lock
// registry, the L1/L2 stack, and the FactoryRunner into the stage
// progression of spec.md §4.4. It holds no per-key state of its own; all of
// that lives in the Locks registry and the two driver tiers.
type GetSetHandler struct {
	stack   *cachestack.CacheStack
	locks   *cachelock.Locks
	runner  *FactoryRunner
	writer  *cachestack.Writer
	logger  telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewGetSetHandler assembles a GetSetHandler over stack. runner and writer
// must be built over the same stack.
func NewGetSetHandler(stack *cachestack.CacheStack, locks *cachelock.Locks, runner *FactoryRunner, writer *cachestack.Writer, logger telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *GetSetHandler {
	return &GetSetHandler{
		stack:   stack,
		locks:   locks,
		runner:  runner,
		writer:  writer,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Handle runs the full get-or-compute protocol for key: consult L1, then
// L2, then factory, under per-key stampede protection, falling back to a
// stale value under grace when the factory fails or times out.
func (h *GetSetHandler) Handle(ctx context.Context, key string, factory Factory, opts cacheitem.Options) ([]byte, error) {
	now := time.Now()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.StartHandle(ctx, key, h.stack.Name)
		defer span.End()
	}

	// Stage A — optimistic L1 hit, no lock held.
	localItem, hasLocal, err := h.stack.L1Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if hasLocal && !localItem.IsLogicallyExpired(now) {
		if localItem.IsEarlyExpired(now) {
			go h.earlyRefresh(key, factory, opts)
		}
		return h.hit(key, "l1", localItem.Value, false), nil
	}

	hasFallback := hasLocal

	// Stage B — lock acquisition.
	lockTimeout := opts.GetApplicableLockTimeout(hasFallback)
	waitStart := time.Now()
	lock, err := h.locks.Acquire(ctx, key, lockTimeout)
	h.metrics.ObserveLockWait(time.Since(waitStart).Seconds())
	if err != nil {
		if cacheerr.Is(err, cacheerr.KindLockTimeout) && opts.Grace.Enabled && hasFallback {
			return h.gracedReturn(ctx, key, "l1", localItem, opts, now)
		}
		return nil, err
	}

	// Stage C — double-checked L1, lock held.
	recheck, ok, err := h.stack.L1Get(ctx, key)
	if err != nil {
		lock.Release()
		return nil, err
	}
	if ok && !recheck.IsLogicallyExpired(now) {
		lock.Release()
		return h.hit(key, "l1", recheck.Value, false), nil
	}

	// Stage D — L2 read-through, lock held. remoteItem is kept even when
	// logically expired: an expired-but-present remote item still counts
	// as a grace fallback candidate at Stage E.
	var remoteItem cacheitem.Item
	var hasRemote bool
	if h.stack.HasL2() {
		remoteItem, hasRemote, err = h.stack.L2Get(ctx, key)
		if err != nil {
			lock.Release()
			return nil, err
		}
		if hasRemote && !remoteItem.IsLogicallyExpired(now) {
			if h.stack.HasL1() {
				if werr := h.stack.L1Set(ctx, remoteItem, now); werr != nil {
					h.logger.Log(ctx, telemetry.LevelWarn, "l1 promotion from l2 failed", "key", key, "cache", h.stack.Name, "error", werr)
				}
			}
			lock.Release()
			return h.hit(key, "l2", remoteItem.Value, false), nil
		}
	}

	missStore := "l2"
	if h.stack.HasL1() {
		missStore = "l1"
	}
	h.metrics.ObserveMiss(missStore)
	h.stack.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindMiss, Key: key, Store: missStore})

	// staleItem is the best available fallback candidate for Stage E/F:
	// the remote item takes priority over the local one, per spec.md §4.4
	// ("staleItem = remoteItem ?? localItem").
	staleItem, staleStore, hasStale := localItem, "l1", hasLocal
	if hasRemote {
		staleItem, staleStore, hasStale = remoteItem, "l2", true
	}

	// Stage E — factory execution, lock held. Run releases lock on every
	// return path.
	value, err := h.runner.Run(ctx, key, factory, hasFallback, opts, now, lock)
	if err == nil {
		return value, nil
	}

	if cacheerr.Is(err, cacheerr.KindFactorySoftTimeout) {
		if hasLocal {
			return h.gracedReturn(ctx, key, "l1", localItem, opts, now)
		}
		return nil, err
	}

	if hasStale && opts.Grace.Enabled {
		return h.gracedReturn(ctx, key, staleStore, staleItem, opts, now)
	}
	return nil, err
}

// hit finalizes a successful read: records the metric, publishes the
// event, and returns value so the caller can return it directly.
func (h *GetSetHandler) hit(key, store string, value []byte, graced bool) []byte {
	h.metrics.ObserveHit(store, graced)
	h.stack.Emitter.Publish(cacheevent.Event{Kind: cacheevent.KindHit, Key: key, Store: store, Value: value, Graced: graced})
	return value
}

// gracedReturn implements Stage F: optionally rewrite the stale item's
// logical expiry forward by opts.Grace.FallbackDuration so the next reader
// in that window does not re-trigger the failing factory, then return the
// stale value as a graced hit.
func (h *GetSetHandler) gracedReturn(ctx context.Context, key, store string, staleItem cacheitem.Item, opts cacheitem.Options, now time.Time) ([]byte, error) {
	item := staleItem
	if opts.Grace.FallbackDuration > 0 {
		item = staleItem.WithFallbackExtension(opts.Grace.FallbackDuration, now)
		if werr := h.writer.WriteItem(ctx, item, now); werr != nil {
			h.logger.Log(ctx, telemetry.LevelWarn, "grace fallback rewrite failed", "key", key, "cache", h.stack.Name, "error", werr)
		}
	}
	return h.hit(key, store, item.Value, true), nil
}

// earlyRefresh is the background task spawned from Stage A when a hit's
// early-expiration window has opened. It never contends with a foreground
// caller: TryAcquire bows out immediately if the key is already locked by
// another refresh or a full miss path. Factory errors are logged, never
// surfaced; this is fire-and-forget maintenance work, not a request path.
func (h *GetSetHandler) earlyRefresh(key string, factory Factory, opts cacheitem.Options) {
	lock, ok := h.locks.TryAcquire(key)
	if !ok {
		return
	}
	ctx := context.Background()
	if _, err := h.runner.Run(ctx, key, factory, false, opts, time.Now(), lock); err != nil {
		h.logger.Log(ctx, telemetry.LevelWarn, "early refresh failed", "key", key, "cache", h.stack.Name, "error", err)
	}
}
