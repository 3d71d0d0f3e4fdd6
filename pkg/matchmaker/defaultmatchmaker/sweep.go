// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package defaultmatchmaker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

type SweepResult struct {
	Pools           int
	Expired         int
	Matched         int
	Purged          int
	DirectoryErrors int
}

type elapsedTimer struct {
	startTime time.Time
	duration  time.Duration
}

func (t *elapsedTimer) start() {
	t.startTime = time.Now()
}

func (t *elapsedTimer) end() {
	t.duration += time.Since(t.startTime)
}

func (t *elapsedTimer) elapsed() time.Duration {
	return t.duration
}

// Run sweeps every interval until ctx is done. A panicking sweep is logged and the next tick runs normally.
func (mm *MatchMaker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mm.sweepSafely(ctx)
		}
	}
}

func (mm *MatchMaker) sweepSafely(ctx context.Context) {
	scope := envelope.NewRootScope(ctx, "MatchMaker.Sweep", "")
	defer scope.Finish()

	defer func() {
		if r := recover(); r != nil {
			scope.Log.WithField("panic", r).Error("sweep panicked")
		}
	}()

	mm.Sweep(scope)
}

// LastSweep returns the completion time of the latest sweep, zero before the first one.
func (mm *MatchMaker) LastSweep() time.Time {
	nanos := mm.lastSweep.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Sweep expires old tickets and assigns the remaining ones of every pool to waiting servers, earliest arrival first,
// then purges found tickets past their retention.
func (mm *MatchMaker) Sweep(rootScope *envelope.Scope) SweepResult {
	scope := rootScope.NewChildScope("MatchMaker.Sweep")
	defer scope.Finish()

	var (
		result     SweepResult
		sweepTimer elapsedTimer
	)
	sweepTimer.start()

	now := mm.now()
	for _, key := range mm.index.Keys() {
		result.Pools++
		mm.sweepPool(scope, key, now, &result)
	}

	for _, purged := range mm.store.PurgeResolved(now.Add(-mm.retention)) {
		mm.unindex(purged.PoolKey(), purged.TicketID)
		result.Purged++
	}

	sweepTimer.end()
	mm.lastSweep.Store(mm.now().UnixNano())
	mm.metrics.AddSweepElapsedTimeMs(sweepTimer.elapsed())

	if result.Expired > 0 || result.Matched > 0 || result.DirectoryErrors > 0 {
		scope.Log.WithFields(logrus.Fields{
			"pools":           result.Pools,
			"expired":         result.Expired,
			"matched":         result.Matched,
			"purged":          result.Purged,
			"directoryErrors": result.DirectoryErrors,
			"elapsed":         sweepTimer.elapsed(),
		}).Info("sweep finished")
	}

	return result
}

func (mm *MatchMaker) sweepPool(rootScope *envelope.Scope, key models.PoolKey, now time.Time, result *SweepResult) {
	scope := rootScope.NewChildScope("MatchMaker.sweepPool")
	defer scope.Finish()
	scope.SetAttributes(envelope.PoolKeyTag, key.String())

	log := scope.Log.WithField("poolKey", key)

	buf := mm.buffers.GetTickets()
	candidates := mm.index.AppendSearching(buf, key)
	defer func() {
		mm.buffers.PutTickets(candidates)
		mm.metrics.SetPoolQueueSize(key.String(), mm.index.QueueSize(key))
	}()

	waiting := candidates[:0]
	for _, ticket := range candidates {
		if now.Sub(ticket.CreatedAt) < mm.expiry {
			waiting = append(waiting, ticket)
			continue
		}
		if _, err := mm.store.SetExpired(ticket.TicketID); err == nil {
			mm.metrics.AddTicketExpired(key.String())
			result.Expired++
			log.WithField("ticketID", ticket.TicketID).Info("ticket expired")
		}
		mm.remove(ticket.TicketID)
	}

	if len(waiting) == 0 {
		return
	}

	query := models.ServerQuery{
		GameMode: key.GameMode(),
		Region:   key.Region(),
		HideFull: true,
	}
	servers, err := mm.directory.ListServers(scope, query)
	if err != nil {
		log.WithError(err).Warn("server directory query failed, pool skipped until next sweep")
		mm.metrics.AddDirectoryError(constants.MatchPathSweep)
		result.DirectoryErrors++
		return
	}

	result.Matched += mm.assign(scope, key, waiting, servers)
}

// assign fills servers in directory order with the earliest eligible tickets. A server never receives more tickets
// than its free slots and a ticket is taken out of the candidates as soon as it is considered for a slot.
func (mm *MatchMaker) assign(scope *envelope.Scope, key models.PoolKey, waiting []models.MatchmakingTicket, servers []models.ServerInfo) int {
	taken := make([]bool, len(waiting))
	left := len(waiting)
	matched := 0

	for _, server := range servers {
		if left == 0 {
			break
		}
		if server.Status != models.ServerStatusWaiting {
			continue
		}

		free := server.FreeSlots()
		for i := 0; i < len(waiting) && free > 0; i++ {
			if taken[i] || !waiting[i].Accepts(server) {
				continue
			}
			taken[i] = true
			left--

			_, err := mm.store.SetFound(waiting[i].TicketID, server)
			if err != nil {
				if !errors.Is(err, models.ErrAlreadyResolved) && !errors.Is(err, models.ErrTicketNotFound) {
					scope.Log.WithError(err).Warn("unable to bind ticket to server")
				}
				continue
			}

			free--
			matched++
			mm.unindex(key, waiting[i].TicketID)
			mm.metrics.AddTicketMatched(key.String(), constants.MatchPathSweep)
			scope.Log.WithField("ticketID", waiting[i].TicketID).
				WithField("serverID", server.ID).
				Info("ticket matched by sweep")
		}
	}

	return matched
}
