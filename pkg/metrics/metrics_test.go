// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collection, ok := NewMetrics(registry).(prometheusMetrics)
	require.True(t, ok)

	collection.AddTicketCreated("survival:any")
	collection.AddTicketCreated("survival:any")
	collection.AddTicketMatched("survival:any", "sweep")
	collection.AddTicketCancelled("survival:any")
	collection.AddDirectoryError("on_demand")
	collection.AddFailedPush("MatchmakingUpdate")
	collection.SetPoolQueueSize("survival:any", 4)
	collection.SetActiveSearchSessions(3)
	collection.AddSweepElapsedTimeMs(12 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collection.ticketsCreated.WithLabelValues("survival:any")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collection.ticketsMatched.WithLabelValues("survival:any", "sweep")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collection.ticketsMatched.WithLabelValues("survival:any", "on_demand")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collection.ticketsCancelled.WithLabelValues("survival:any")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collection.directoryErrors.WithLabelValues("on_demand")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collection.failedPushes.WithLabelValues("MatchmakingUpdate")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collection.poolQueueSize.WithLabelValues("survival:any")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collection.activeSearchSessions))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "mm_sweep_elapsed_time_ms")
}
