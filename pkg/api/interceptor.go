package api

import (
	"context"

	"github.com/cuemby/rackmon/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// servingStatus maps the process health onto the gRPC health protocol.
// A degraded upstream still serves.
func servingStatus(h metrics.HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	if h.Status == "unhealthy" {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// HealthSyncInterceptor refreshes the gRPC health status from checker before
// every health check, so probes see the same state as /health.
func HealthSyncInterceptor(checker *metrics.HealthChecker, hs *health.Server) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if info.FullMethod == healthCheckMethod {
			hs.SetServingStatus("", servingStatus(checker.GetHealth()))
		}
		return handler(ctx, req)
	}
}
