// Package rawrcache assembles the get-or-compute core (cachestack,
// cachecore, rpcfacade) and the teacher's gRPC middleware stack behind one
// functional-options constructor, the way the teacher's own server.go
// assembles interceptors behind [NewServer].
package rawrcache

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/cachecore"
	"github.com/Keksclan/rawrcache/cachelock"
	"github.com/Keksclan/rawrcache/cachestack"
	"github.com/Keksclan/rawrcache/interceptors"
	"github.com/Keksclan/rawrcache/internal/core"
	"github.com/Keksclan/rawrcache/ping"
	"github.com/Keksclan/rawrcache/rpcfacade"
	"github.com/Keksclan/rawrcache/telemetry"
)

// Server is a composable wrapper around a [grpc.Server] that layers
// middleware (recovery, authentication, rate limiting, IP blocking) and, if
// at least one cache tier is configured, the get-or-compute core exposed
// through [rpcfacade.Handler].
type Server struct {
	grpcServer *grpc.Server
	stack      *cachestack.CacheStack
	handler    *cachecore.GetSetHandler
	facade     *rpcfacade.Handler
}

// NewServer creates a new [Server] by applying the supplied functional
// [Option] values and wiring the resulting unary and stream interceptor
// chains into [grpc.NewServer].
//
// Example:
//
//	srv := rawrcache.NewServer(
//		rawrcache.WithRecovery(),
//		rawrcache.WithCacheL1(10_000),
//		rawrcache.WithCacheL2Redis("localhost:6379", "", 0),
//	)
func NewServer(opts ...Option) *Server {
	cfg := config{
		cacheName: "rawrcache",
		logger:    telemetry.NoopLogger{},
	}
	for _, o := range opts {
		o(&cfg)
	}

	unary, stream := cfg.unaryInterceptors, cfg.streamInterceptors
	serverOpts := core.BuildServerOptions(unary, stream, interceptors.ChainUnary, interceptors.ChainStream)
	s := &Server{grpcServer: grpc.NewServer(serverOpts...)}

	if cfg.l1 == nil && cfg.l2 == nil {
		return s
	}

	var stackOpts []cachestack.Option
	if cfg.l1 != nil {
		stackOpts = append(stackOpts, cachestack.WithL1(cfg.l1))
	}
	if cfg.l2 != nil {
		stackOpts = append(stackOpts, cachestack.WithL2(cfg.l2))
	}
	stackOpts = append(stackOpts, cachestack.WithLogger(cfg.logger))

	var metrics *telemetry.Metrics
	if cfg.metricsReg != nil {
		metrics = telemetry.NewMetrics(cfg.metricsReg)
		stackOpts = append(stackOpts, cachestack.WithMetrics(metrics))
	}

	stack, err := cachestack.New(cfg.cacheName, stackOpts...)
	if err != nil {
		// cachestack.New only fails when neither tier is configured, which
		// the early return above already excludes.
		panic(err)
	}

	var br *breaker.Breaker
	if cfg.breaker != nil {
		br = breaker.New(breaker.Config{
			FailureThreshold:   cfg.breaker.FailureThreshold,
			OpenTimeout:        cfg.breaker.OpenTimeout,
			HalfOpenMaxSuccess: cfg.breaker.HalfOpenMaxSuccess,
		})
	}

	tracer := telemetry.NewTracer(cfg.tracerProvider)
	writer := cachestack.NewWriter(stack)
	runner := cachecore.NewFactoryRunner(writer, cfg.logger, metrics, tracer, br)
	handler := cachecore.NewGetSetHandler(stack, cachelock.New(), runner, writer, cfg.logger, metrics, tracer)
	facade := rpcfacade.NewHandler(stack, handler, cfg.registry)

	s.stack = stack
	s.handler = handler
	s.facade = facade
	rpcfacade.Register(s.grpcServer, facade)

	return s
}

// GRPC returns the underlying *grpc.Server so callers can register
// additional services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Stack returns the configured CacheStack, or nil if no tier was
// configured via WithCacheL1/WithCacheL2Redis.
func (s *Server) Stack() *cachestack.CacheStack {
	return s.stack
}

// Handler returns the get-or-compute orchestrator wired over Stack, or nil
// if no tier was configured.
func (s *Server) Handler() *cachecore.GetSetHandler {
	return s.handler
}

// RegisterPing registers the built-in rawr.Ping health-check service on the
// underlying gRPC server. Note: ping and rpcfacade both register a codec
// under the proto codec's name from their package init functions, whether
// or not a cache tier is configured, so ping's messages are marshaled by
// whichever codec initialized last (see DESIGN.md). Prefer a dedicated health-check process
// if both surfaces must run side by side with strict codec isolation.
func (s *Server) RegisterPing(h ping.Handler) {
	ping.Register(s.grpcServer, h)
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
