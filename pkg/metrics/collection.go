// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	ticketsCreated       prometheus.CounterVec
	ticketsMatched       prometheus.CounterVec
	ticketsExpired       prometheus.CounterVec
	ticketsCancelled     prometheus.CounterVec
	directoryErrors      prometheus.CounterVec
	failedPushes         prometheus.CounterVec
	sweepElapsedTime     prometheus.Histogram
	poolQueueSize        prometheus.GaugeVec
	activeSearchSessions prometheus.Gauge
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)
	poolLabelDimensions := []string{"pool_key"}

	ticketsCreated := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_tickets_created_total",
			Help: "Number of matchmaking tickets created per pool",
		}, poolLabelDimensions)
	ticketsMatched := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_tickets_matched_total",
			Help: "Number of matchmaking tickets assigned to a server, by the path that assigned them",
		}, append(poolLabelDimensions, "path"))
	ticketsExpired := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_tickets_expired_total",
			Help: "Number of matchmaking tickets expired by the sweep",
		}, poolLabelDimensions)
	ticketsCancelled := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_tickets_cancelled_total",
			Help: "Number of matchmaking tickets cancelled by players or disconnects",
		}, poolLabelDimensions)
	directoryErrors := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_directory_errors_total",
			Help: "Number of failed server directory queries",
		}, []string{"path"})
	failedPushes := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_failed_pushes_total",
			Help: "Number of notifications that could not be delivered to a connection",
		}, []string{"event"})
	//nolint:promlinter
	sweepElapsedTime := factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mm_sweep_elapsed_time_ms",
			Help:    "A histogram of periodic sweep elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})
	poolQueueSize := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mm_pool_queue_size",
			Help: "Number of searching tickets per pool as of the last sweep",
		}, poolLabelDimensions)
	activeSearchSessions := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mm_active_search_sessions",
			Help: "Number of connections with a running matchmaking search",
		})

	return prometheusMetrics{
		ticketsCreated:       *ticketsCreated,
		ticketsMatched:       *ticketsMatched,
		ticketsExpired:       *ticketsExpired,
		ticketsCancelled:     *ticketsCancelled,
		directoryErrors:      *directoryErrors,
		failedPushes:         *failedPushes,
		sweepElapsedTime:     sweepElapsedTime,
		poolQueueSize:        *poolQueueSize,
		activeSearchSessions: activeSearchSessions,
	}
}

func (metrics prometheusMetrics) AddTicketCreated(poolKey string) {
	metrics.ticketsCreated.With(prometheus.Labels{"pool_key": poolKey}).Inc()
}

func (metrics prometheusMetrics) AddTicketMatched(poolKey string, path string) {
	metrics.ticketsMatched.With(prometheus.Labels{"pool_key": poolKey, "path": path}).Inc()
}

func (metrics prometheusMetrics) AddTicketExpired(poolKey string) {
	metrics.ticketsExpired.With(prometheus.Labels{"pool_key": poolKey}).Inc()
}

func (metrics prometheusMetrics) AddTicketCancelled(poolKey string) {
	metrics.ticketsCancelled.With(prometheus.Labels{"pool_key": poolKey}).Inc()
}

func (metrics prometheusMetrics) AddDirectoryError(path string) {
	metrics.directoryErrors.With(prometheus.Labels{"path": path}).Inc()
}

func (metrics prometheusMetrics) AddSweepElapsedTimeMs(elapsedTime time.Duration) {
	metrics.sweepElapsedTime.Observe(float64(elapsedTime.Milliseconds()))
}

func (metrics prometheusMetrics) SetPoolQueueSize(poolKey string, size int) {
	metrics.poolQueueSize.With(prometheus.Labels{"pool_key": poolKey}).Set(float64(size))
}

func (metrics prometheusMetrics) SetActiveSearchSessions(count int) {
	metrics.activeSearchSessions.Set(float64(count))
}

func (metrics prometheusMetrics) AddFailedPush(event string) {
	metrics.failedPushes.With(prometheus.Labels{"event": event}).Inc()
}
