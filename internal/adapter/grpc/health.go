// Package grpc binds the gRPC health protocol to record source reachability.
package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/eslsoft/masteryctx/internal/adapter/connectrpc"
	"github.com/eslsoft/masteryctx/internal/repository"
)

const DefaultProbeInterval = 15 * time.Second

// HealthChecker reports SERVING while the record source answers pings.
type HealthChecker struct {
	records repository.RecordRepository
	server  *health.Server
	logger  logrus.FieldLogger
	timeout time.Duration
}

func NewHealthChecker(records repository.RecordRepository, logger logrus.FieldLogger) *HealthChecker {
	return &HealthChecker{
		records: records,
		server:  health.NewServer(),
		logger:  logger,
		timeout: 3 * time.Second,
	}
}

// Server is the health service to register on a gRPC server.
func (h *HealthChecker) Server() healthpb.HealthServer {
	return h.server
}

// Probe pings the record source once and publishes the result for the
// overall server and the learning context service.
func (h *HealthChecker) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.records == nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	} else {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := h.records.Ping(pctx); err != nil {
			h.logger.WithError(err).Warn("record source unreachable")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(connectrpc.LearningContextServiceName, status)
	return status
}

// Run probes every interval until ctx is done, then marks the server as
// shutting down.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	h.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
