// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) AddTicketCreated(poolKey string) {}

func (s stubMetricsCollection) AddTicketMatched(poolKey string, path string) {}

func (s stubMetricsCollection) AddTicketExpired(poolKey string) {}

func (s stubMetricsCollection) AddTicketCancelled(poolKey string) {}

func (s stubMetricsCollection) AddDirectoryError(path string) {}

func (s stubMetricsCollection) AddSweepElapsedTimeMs(elapsedTime time.Duration) {}

func (s stubMetricsCollection) SetPoolQueueSize(poolKey string, size int) {}

func (s stubMetricsCollection) SetActiveSearchSessions(count int) {}

func (s stubMetricsCollection) AddFailedPush(event string) {}

func NewMetrics() metrics.MatchmakingMetrics {
	return stubMetricsCollection{}
}
