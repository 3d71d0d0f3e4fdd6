// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package poolindex

import (
	"sort"
	"time"

	"github.com/elliotchance/pie/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

type PoolStats struct {
	Key             models.PoolKey `json:"poolKey"`
	GameMode        string         `json:"gameMode"`
	Region          string         `json:"region"`
	Searching       int            `json:"searching"`
	MeanWaitSeconds float64        `json:"meanWaitSeconds"`
	P90WaitSeconds  float64        `json:"p90WaitSeconds"`
}

// Stats summarizes how long the searching tickets of every pool have been waiting.
func (idx *Index) Stats(now time.Time) []PoolStats {
	keys := idx.Keys()
	result := make([]PoolStats, 0, len(keys))
	for _, key := range keys {
		tickets := idx.SnapshotSearching(key)
		if len(tickets) == 0 {
			continue
		}
		result = append(result, computeStats(key, tickets, now))
	}
	return result
}

func computeStats(key models.PoolKey, tickets []models.MatchmakingTicket, now time.Time) PoolStats {
	waits := pie.Map(tickets, func(t models.MatchmakingTicket) float64 {
		return now.Sub(t.CreatedAt).Seconds()
	})
	sort.Float64s(waits)

	return PoolStats{
		Key:             key,
		GameMode:        key.GameMode(),
		Region:          key.Region().OrAny(),
		Searching:       len(tickets),
		MeanWaitSeconds: stat.Mean(waits, nil),
		P90WaitSeconds:  stat.Quantile(0.9, stat.Empirical, waits, nil),
	}
}
