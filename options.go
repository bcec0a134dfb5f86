package rawrcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/driver/memory"
	"github.com/Keksclan/rawrcache/driver/redis"
	"github.com/Keksclan/rawrcache/interceptors"
	"github.com/Keksclan/rawrcache/rpcfacade"
	"github.com/Keksclan/rawrcache/security"
	"github.com/Keksclan/rawrcache/telemetry"
)

// Option configures a Server.
type Option func(*config)

// WithUnaryInterceptor appends a unary server interceptor to the chain.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.unaryInterceptors = append(c.unaryInterceptors, i)
	}
}

// WithStreamInterceptor appends a stream server interceptor to the chain.
func WithStreamInterceptor(i grpc.StreamServerInterceptor) Option {
	return func(c *config) {
		c.streamInterceptors = append(c.streamInterceptors, i)
	}
}

// WithRecovery prepends panic-recovery interceptors to the unary and stream
// chains so that a panic inside a handler returns codes.Internal instead of
// crashing the process.
func WithRecovery() Option {
	return func(c *config) {
		c.unaryInterceptors = append([]grpc.UnaryServerInterceptor{interceptors.RecoveryUnary()}, c.unaryInterceptors...)
		c.streamInterceptors = append([]grpc.StreamServerInterceptor{interceptors.RecoveryStream()}, c.streamInterceptors...)
	}
}

// WithIPBlocker appends unary and stream interceptors that deny requests
// the given IPBlocker rejects.
func WithIPBlocker(b *security.IPBlocker) Option {
	return func(c *config) {
		c.unaryInterceptors = append(c.unaryInterceptors, interceptors.IPBlockUnary(b))
		c.streamInterceptors = append(c.streamInterceptors, interceptors.IPBlockStream(b))
	}
}

// WithName sets the CacheStack's name, used in logs, traces and metrics.
func WithName(name string) Option {
	return func(c *config) { c.cacheName = name }
}

// WithCacheL1 configures the in-process L1 tier with the given maximum
// ristretto cost budget.
func WithCacheL1(maxCost int64) Option {
	return func(c *config) {
		d, err := memory.New(maxCost)
		if err == nil {
			c.l1 = d
		}
	}
}

// WithCacheL2Redis configures the shared L2 tier backed by Redis.
func WithCacheL2Redis(addr, password string, db int) Option {
	return func(c *config) {
		c.l2 = redis.New(addr, password, db)
	}
}

// WithLogger overrides the default no-op logger used across the cache
// stack and the get-or-compute core.
func WithLogger(l telemetry.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics registers the cache stack's Prometheus metrics against reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.metricsReg = reg }
}

// WithTracerProvider attaches an OpenTelemetry TracerProvider used by the
// get-or-compute core's spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithBreaker enables the optional circuit breaker around factory
// execution, shared across every key of the cache stack (SPEC_FULL.md
// §2.9).
func WithBreaker(cfg cacheitem.BreakerConfig) Option {
	return func(c *config) { c.breaker = &cfg }
}

// WithFactoryRegistry attaches the registry GetOrSet uses to resolve a
// remote key to a server-side factory and options.
func WithFactoryRegistry(reg *rpcfacade.FactoryRegistry) Option {
	return func(c *config) { c.registry = reg }
}
