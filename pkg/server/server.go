// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package server exposes the matchmaker over HTTP: websocket hubs, REST endpoints and prometheus metrics.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-server-matchmaker/pkg/hubs"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/notification"
	"github.com/AccelByte/extend-server-matchmaker/pkg/poolindex"
)

// Matchmaking is the engine surface the REST endpoints need.
type Matchmaking interface {
	matchmaker.Matchmaker
	PoolStats() []poolindex.PoolStats
	TicketOwner(ticketID string) (string, bool)
}

type Server struct {
	matchmaker     Matchmaking
	directory      directory.Registrar
	verifier       *auth.Verifier
	notifications  *notification.Hub
	matchmakingHub *hubs.MatchmakingHub
	gameHub        *hubs.GameHub
	registry       *prometheus.Registry
	upgrader       websocket.Upgrader

	matchmakingMethods map[string]method
	gameMethods        map[string]method
}

func New(
	mm Matchmaking,
	directory directory.Registrar,
	verifier *auth.Verifier,
	notifications *notification.Hub,
	matchmakingHub *hubs.MatchmakingHub,
	gameHub *hubs.GameHub,
	registry *prometheus.Registry,
) *Server {
	s := &Server{
		matchmaker:     mm,
		directory:      directory,
		verifier:       verifier,
		notifications:  notifications,
		matchmakingHub: matchmakingHub,
		gameHub:        gameHub,
		registry:       registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.matchmakingMethods = s.newMatchmakingMethods()
	s.gameMethods = s.newGameMethods()
	return s
}

// Routes sets up all HTTP routes.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(extractTraceContext)
	r.Use(requestLogger)

	r.Get("/hubs/matchmaking", s.ServeMatchmakingHub)
	r.Get("/hubs/game", s.ServeGameHub)

	r.Route("/api/matchmaking", func(r chi.Router) {
		r.Post("/join", s.JoinQueue)
		r.Get("/status/{ticketId}", s.GetStatus)
		r.Get("/pools", s.GetPools)
		r.Delete("/{ticketId}", s.CancelTicket)
	})

	r.Route("/api/servers", func(r chi.Router) {
		r.Get("/", s.ListServers)
		r.Post("/", s.RegisterServer)
		r.Get("/{serverId}", s.GetServer)
		r.Put("/{serverId}", s.UpdateServer)
		r.Delete("/{serverId}", s.DeregisterServer)
		r.Post("/{serverId}/heartbeat", s.Heartbeat)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	r.Get("/healthz", s.Health)

	return r
}

// NewHTTPServer wraps the routes into an http.Server listening on address.
func (s *Server) NewHTTPServer(address string) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    constants.MaxFrameBytes,
	}
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": s.notifications.ConnectionCount(),
		"gameServers": len(s.gameHub.RegisteredServers()),
	})
}

func extractTraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestID":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
