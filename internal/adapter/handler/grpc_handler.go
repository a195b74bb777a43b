package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/storefront/internal/core/service"
)

// ServiceName is the gRPC health service name reported for the storefront.
const ServiceName = "storefront.Conversation"

// GRPCHandler publishes storefront readiness over the standard gRPC health
// protocol.
type GRPCHandler struct {
	health  *health.Server
	catalog *service.Catalog
	pingers map[string]Pinger
	logger  *zap.Logger
}

func NewGRPCHandler(catalog *service.Catalog, pingers map[string]Pinger, logger *zap.Logger) *GRPCHandler {
	h := &GRPCHandler{
		health:  health.NewServer(),
		catalog: catalog,
		pingers: pingers,
		logger:  logger,
	}
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register installs the health and reflection services.
func (h *GRPCHandler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
	reflection.Register(s)
}

// Sync probes the dependencies once and updates the reported status.
func (h *GRPCHandler) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ready, checks := checkReady(ctx, h.catalog, h.pingers)

	status := healthpb.HealthCheckResponse_SERVING
	if !ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Debug("not serving", zap.Any("checks", checks))
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Run re-syncs on every tick until ctx is done, then reports NOT_SERVING to
// every watcher.
func (h *GRPCHandler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Sync(ctx)
	for {
		select {
		case <-ticker.C:
			h.Sync(ctx)
		case <-ctx.Done():
			h.health.Shutdown()
			return
		}
	}
}

func (h *GRPCHandler) Check(ctx context.Context, serviceName string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// UnaryLogging logs every unary call with its duration.
func UnaryLogging(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
}
