// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/config"
	"github.com/AccelByte/extend-server-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-server-matchmaker/pkg/hubs"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker/defaultmatchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-server-matchmaker/pkg/notification"
	"github.com/AccelByte/extend-server-matchmaker/pkg/registry"
	"github.com/AccelByte/extend-server-matchmaker/pkg/server"
	"github.com/AccelByte/extend-server-matchmaker/pkg/supervisor"
)

const (
	serviceName     = "server-matchmaker"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("server matchmaker stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logrus.StandardLogger()
	if err := configureLogger(logger, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := configureTracing(cfg)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewMetrics(promRegistry)

	serverDirectory, closeDirectory, err := newDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	mm := defaultmatchmaker.NewMatchMaker(cfg, serverDirectory, collector)
	go mm.Run(ctx, cfg.SweepInterval())

	connections := registry.New()
	notifications := notification.NewHub(connections, cfg.WebsocketWriteTimeout(), collector)
	sessions := supervisor.New(mm, notifications, collector, cfg.PollInterval(), cfg.PollMaxAttempts)
	defer sessions.Shutdown()

	verifier := auth.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
	if verifier.Insecure() {
		logger.Warn("JWT_SIGNING_KEY is empty, players are identified by the playerId query parameter")
	}

	httpServer := server.New(
		mm,
		serverDirectory,
		verifier,
		notifications,
		hubs.NewMatchmakingHub(connections, sessions, notifications),
		hubs.NewGameHub(connections, notifications, serverDirectory),
		promRegistry,
	).NewHTTPServer(cfg.HTTPAddress)

	grpcServer, healthServer := server.NewGRPCServer(logger, promRegistry)
	monitor := server.NewSweepMonitor(healthServer, mm.LastSweep, cfg.SweepInterval()*time.Duration(cfg.SweepStaleAfterIntervals))
	go monitor.Run(ctx, cfg.SweepInterval())

	listener, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.GRPCAddress, err)
	}

	serveErrors := make(chan error, 2)
	go func() {
		logger.WithField("address", cfg.GRPCAddress).Info("grpc server started")
		serveErrors <- grpcServer.Serve(listener)
	}()
	go func() {
		logger.WithField("address", cfg.HTTPAddress).Info("http server started")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErrors:
		logger.WithError(err).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Warn("http server did not shut down cleanly")
	}
	grpcServer.GracefulStop()

	return err
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// configureTracing installs the propagators and, when a zipkin collector is configured, an exporting tracer provider.
func configureTracing(cfg *config.Config) (func(), error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		b3.New(),
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.ZipkinURL == "" {
		return func() {}, nil
	}

	exporter, err := zipkin.New(cfg.ZipkinURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create zipkin exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("unable to flush traces")
		}
	}, nil
}

func newDirectory(ctx context.Context, cfg *config.Config) (directory.Registrar, func(), error) {
	switch cfg.DirectoryBackend {
	case config.DirectoryBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisDirectory := directory.NewRedisDirectory(client, cfg.RedisKeyPrefix, cfg.DirectoryHeartbeatTTL())

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisDirectory.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}

		return redisDirectory, func() { _ = client.Close() }, nil
	default:
		return directory.NewMemoryDirectory(cfg.DirectoryHeartbeatTTL()), func() {}, nil
	}
}
