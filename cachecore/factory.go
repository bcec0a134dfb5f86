// Package cachecore implements the get-or-compute protocol: FactoryRunner
// (spec.md §4.3) and GetSetHandler (spec.md §4.4), the two components that
// make up the bulk of the core's line budget. Both are grounded on the
// teacher's cache/tiered.go singleflight shape, generalized to the full
// soft/hard timeout and grace-period state machine spec.md requires.
package cachecore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/cacheerr"
	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/cachelock"
	"github.com/Keksclan/rawrcache/cachestack"
	"github.com/Keksclan/rawrcache/telemetry"
)

// Factory produces the value for a key on a cache miss.
type Factory func(ctx context.Context) ([]byte, error)

// ErrBreakerOpen is wrapped inside a KindFactoryError when the optional
// circuit breaker is open and the factory is skipped entirely. See
// SPEC_FULL.md §2.9.
var ErrBreakerOpen = errors.New("cachecore: factory circuit breaker is open")

var errHardTimeout = errors.New("cachecore: factory hard timeout")

// FactoryRunner executes a Factory under the caller's lock, enforcing the
// soft/hard timeouts of spec.md §4.3 and writing the result through via a
// [cachestack.Writer] on success.
type FactoryRunner struct {
	writer  *cachestack.Writer
	logger  telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// breaker is optional and, per SPEC_FULL.md §2.9, shared across all
	// keys of the owning CacheStack rather than created per key.
	breaker *breaker.Breaker
}

// NewFactoryRunner builds a FactoryRunner. br may be nil to disable the
// circuit breaker; tracer may be nil to disable span creation.
func NewFactoryRunner(writer *cachestack.Writer, logger telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer, br *breaker.Breaker) *FactoryRunner {
	return &FactoryRunner{writer: writer, logger: logger, metrics: metrics, tracer: tracer, breaker: br}
}

// factoryResult carries the outcome of a factory invocation between the
// worker goroutine and whichever select arm is waiting on it.
type factoryResult struct {
	value []byte
	err   error
}

// Run executes factory for key under opts' soft/hard timeouts and releases
// lock exactly once along every return path, including the soft-timeout
// path: there the caller has already been told to fall back, so the lock is
// released immediately and the factory keeps running unattended in the
// background (continueInBackground), never blocking another caller on the
// same key, per spec.md §5 ("early-refresh background tasks never block
// foreground callers").
func (r *FactoryRunner) Run(ctx context.Context, key string, factory Factory, hasFallback bool, opts cacheitem.Options, now time.Time, lock *cachelock.Handle) ([]byte, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		lock.Release()
		return nil, cacheerr.New(cacheerr.KindFactoryError, key, ErrBreakerOpen)
	}

	runCtx, cancel := r.withHardDeadline(ctx, opts.Timeouts.Hard)

	spanCtx := runCtx
	var span trace.Span
	if r.tracer != nil {
		spanCtx, span = r.tracer.StartFactory(runCtx, key)
	}

	start := time.Now()
	resultC := make(chan factoryResult, 1)
	go func() {
		v, err := factory(spanCtx)
		resultC <- factoryResult{value: v, err: err}
	}()

	var softC <-chan time.Time
	var softTimer *time.Timer
	if opts.Timeouts.Soft > 0 {
		softTimer = time.NewTimer(opts.Timeouts.Soft)
		defer softTimer.Stop()
		softC = softTimer.C
	}

	select {
	case res := <-resultC:
		cancel()
		r.observeCompletion(start, res.err, span)
		return r.finish(ctx, key, res, opts, now, lock)

	case <-softC:
		if !hasFallback || !opts.Grace.Enabled {
			return r.awaitWithoutSoftFallback(ctx, key, resultC, runCtx, cancel, start, opts, now, lock, span)
		}
		r.metrics.ObserveFactoryTimeout("soft")
		if span != nil {
			telemetry.EndWithResult(span, true, nil)
		}
		lock.Release()
		go r.continueInBackground(ctx, key, resultC, runCtx, cancel, opts, now)
		return nil, cacheerr.New(cacheerr.KindFactorySoftTimeout, key, nil)

	case <-runCtx.Done():
		cancel()
		r.recordBreaker(errHardTimeout)
		r.metrics.ObserveFactoryTimeout("hard")
		if span != nil {
			telemetry.EndWithResult(span, false, errHardTimeout)
		}
		lock.Release()
		return nil, cacheerr.New(cacheerr.KindFactoryHardTimeout, key, context.DeadlineExceeded)
	}
}

// awaitWithoutSoftFallback is reached when the soft timer fires but no
// fallback value is available: the soft timeout is not actionable, so the
// runner keeps waiting for either the real result or the hard deadline.
func (r *FactoryRunner) awaitWithoutSoftFallback(ctx context.Context, key string, resultC <-chan factoryResult, runCtx context.Context, cancel context.CancelFunc, start time.Time, opts cacheitem.Options, now time.Time, lock *cachelock.Handle, span trace.Span) ([]byte, error) {
	select {
	case res := <-resultC:
		cancel()
		r.observeCompletion(start, res.err, span)
		return r.finish(ctx, key, res, opts, now, lock)
	case <-runCtx.Done():
		cancel()
		r.recordBreaker(errHardTimeout)
		r.metrics.ObserveFactoryTimeout("hard")
		if span != nil {
			telemetry.EndWithResult(span, false, errHardTimeout)
		}
		lock.Release()
		return nil, cacheerr.New(cacheerr.KindFactoryHardTimeout, key, context.DeadlineExceeded)
	}
}

func (r *FactoryRunner) observeCompletion(start time.Time, err error, span trace.Span) {
	r.metrics.ObserveFactoryDuration(time.Since(start).Seconds())
	r.recordBreaker(err)
	if span != nil {
		telemetry.EndWithResult(span, false, err)
	}
}

// withHardDeadline derives a context bounded by hard if set, otherwise a
// plain cancelable context so callers always get a cancel func to defer.
func (r *FactoryRunner) withHardDeadline(ctx context.Context, hard time.Duration) (context.Context, context.CancelFunc) {
	if hard > 0 {
		return context.WithTimeout(ctx, hard)
	}
	return context.WithCancel(ctx)
}

func (r *FactoryRunner) recordBreaker(err error) {
	if r.breaker == nil {
		return
	}
	if err != nil {
		r.breaker.OnFailure()
	} else {
		r.breaker.OnSuccess()
	}
}

// finish handles a completed (non-timed-out) factory result: write through
// on success, release the lock, and classify any error.
func (r *FactoryRunner) finish(ctx context.Context, key string, res factoryResult, opts cacheitem.Options, now time.Time, lock *cachelock.Handle) ([]byte, error) {
	defer lock.Release()
	if res.err != nil {
		return nil, cacheerr.New(cacheerr.KindFactoryError, key, res.err)
	}
	item, err := r.writer.Set(ctx, key, res.value, opts, now)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// continueInBackground lets a soft-timed-out factory run to completion
// after the foreground caller has already been told to fall back and the
// per-key lock has already been released. It honors the same hard deadline
// the foreground invocation used (spec.md §9 open question, resolved
// "yes"). On success the value is written through; on failure it is
// logged and dropped.
func (r *FactoryRunner) continueInBackground(ctx context.Context, key string, resultC <-chan factoryResult, runCtx context.Context, cancel context.CancelFunc, opts cacheitem.Options, now time.Time) {
	defer cancel()
	select {
	case res := <-resultC:
		r.recordBreaker(res.err)
		if res.err != nil {
			r.logger.Log(ctx, telemetry.LevelWarn, "background factory continuation failed after soft timeout", "key", key, "error", res.err)
			return
		}
		if _, err := r.writer.Set(ctx, key, res.value, opts, now); err != nil {
			r.logger.Log(ctx, telemetry.LevelWarn, "background factory continuation write failed", "key", key, "error", err)
		}
	case <-runCtx.Done():
		r.recordBreaker(errHardTimeout)
		r.metrics.ObserveFactoryTimeout("hard")
		r.logger.Log(ctx, telemetry.LevelWarn, "background factory continuation hit hard timeout", "key", key)
	}
}
