package rawrcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/Keksclan/rawrcache/cachedriver"
	"github.com/Keksclan/rawrcache/cacheitem"
	"github.com/Keksclan/rawrcache/rpcfacade"
	"github.com/Keksclan/rawrcache/telemetry"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	unaryInterceptors  []grpc.UnaryServerInterceptor
	streamInterceptors []grpc.StreamServerInterceptor

	cacheName      string
	l1             cachedriver.Driver
	l2             cachedriver.Driver
	logger         telemetry.Logger
	metricsReg     prometheus.Registerer
	tracerProvider trace.TracerProvider
	breaker        *cacheitem.BreakerConfig
	registry       *rpcfacade.FactoryRegistry
}
