// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"fmt"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// NewGRPCServer builds the grpc server carrying the standard health service. Its request metrics are registered
// into registry.
func NewGRPCServer(logger *logrus.Logger, registry *prometheus.Registry) (*grpc.Server, *health.Server) {
	serverMetrics := grpcprom.NewServerMetrics()
	registry.MustRegister(serverMetrics)

	recoveryHandler := recovery.WithRecoveryHandler(func(p any) error {
		logger.WithField("panic", p).Error("recovered from grpc handler panic")
		return status.Errorf(codes.Internal, "%v", p)
	})

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			serverMetrics.UnaryServerInterceptor(),
			logging.UnaryServerInterceptor(InterceptorLogger(logger)),
			recovery.UnaryServerInterceptor(recoveryHandler),
		),
		grpc.ChainStreamInterceptor(
			serverMetrics.StreamServerInterceptor(),
			logging.StreamServerInterceptor(InterceptorLogger(logger)),
			recovery.StreamServerInterceptor(recoveryHandler),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	serverMetrics.InitializeMetrics(s)

	return s, healthServer
}

// InterceptorLogger adapts logrus to the grpc logging interceptor.
func InterceptorLogger(l logrus.FieldLogger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make(map[string]any, len(fields)/2)
		i := logging.Fields(fields).Iterator()
		for i.Next() {
			k, v := i.At()
			f[k] = v
		}
		entry := l.WithFields(f)

		switch lvl {
		case logging.LevelDebug:
			entry.Debug(msg)
		case logging.LevelInfo:
			entry.Info(msg)
		case logging.LevelWarn:
			entry.Warn(msg)
		case logging.LevelError:
			entry.Error(msg)
		default:
			entry.Error(fmt.Sprintf("unknown level %v: %s", lvl, msg))
		}
	})
}

// SweepMonitor keeps the grpc health status in line with the periodic sweep. The service turns NOT_SERVING once
// no sweep completed within staleAfter.
type SweepMonitor struct {
	health     *health.Server
	lastSweep  func() time.Time
	staleAfter time.Duration
	started    time.Time
	now        func() time.Time
}

func NewSweepMonitor(health *health.Server, lastSweep func() time.Time, staleAfter time.Duration) *SweepMonitor {
	return &SweepMonitor{
		health:     health,
		lastSweep:  lastSweep,
		staleAfter: staleAfter,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Check updates the health status once and returns it.
func (m *SweepMonitor) Check() healthpb.HealthCheckResponse_ServingStatus {
	last := m.lastSweep()
	if last.IsZero() {
		last = m.started
	}

	servingStatus := healthpb.HealthCheckResponse_SERVING
	if m.now().Sub(last) > m.staleAfter {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.health.SetServingStatus("", servingStatus)
	return servingStatus
}

// Run checks the sweep every interval until ctx is done, then marks the service NOT_SERVING.
func (m *SweepMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check()
	for {
		select {
		case <-ctx.Done():
			m.health.Shutdown()
			return
		case <-ticker.C:
			if m.Check() == healthpb.HealthCheckResponse_NOT_SERVING {
				logrus.WithField("lastSweep", m.lastSweep()).Warn("matchmaking sweep is stale")
			}
		}
	}
}
