// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatchmakingMetrics interface {
	AddTicketCreated(poolKey string)
	AddTicketMatched(poolKey string, path string)
	AddTicketExpired(poolKey string)
	AddTicketCancelled(poolKey string)
	AddDirectoryError(path string)
	AddSweepElapsedTimeMs(elapsedTime time.Duration)
	SetPoolQueueSize(poolKey string, size int)
	SetActiveSearchSessions(count int)
	AddFailedPush(event string)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
