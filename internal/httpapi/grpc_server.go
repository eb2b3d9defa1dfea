package httpapi

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"ffb.ae/internal/obs"
)

// HealthServer answers grpc.health.v1 checks from the readiness probe so
// that load balancers can use either protocol.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	probe   Probe
	metrics *obs.Metrics
	logger  *zap.Logger
}

func NewHealthServer(probe Probe, metrics *obs.Metrics, logger *zap.Logger) *HealthServer {
	if probe == nil {
		probe = ReadyProbe{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{probe: probe, metrics: metrics, logger: logger.Named("grpc")}
}

// Register attaches the health service to srv.
func (h *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h)
}

// Check reports SERVING when dependencies are reachable. The empty name and
// the site's own name are the only known services.
func (h *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", serviceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := h.probe.Check(ctx); err != nil {
		h.metrics.SetReady(false)
		h.logger.Warn("health check failed", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	h.metrics.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
