// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package defaultmatchmaker provides the default first-fit matching engine.
// Tickets are matched either on demand, when their status is queried, or by the periodic sweep over all pools.
package defaultmatchmaker

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-server-matchmaker/pkg/config"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/mathutil"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/poolindex"
	"github.com/AccelByte/extend-server-matchmaker/pkg/ticketstore"
)

var _ matchmaker.Matchmaker = (*MatchMaker)(nil)

type MatchMaker struct {
	store     *ticketstore.Store
	index     *poolindex.Index
	directory matchmaker.ServerDirectory
	metrics   metrics.MatchmakingMetrics
	buffers   *models.Pool

	expiry    time.Duration
	retention time.Duration
	now       func() time.Time

	lastSweep atomic.Int64
}

type Option func(*MatchMaker)

// WithClock overrides the clock of the engine and of its ticket store.
func WithClock(now func() time.Time) Option {
	return func(mm *MatchMaker) {
		mm.now = now
	}
}

func NewMatchMaker(cfg *config.Config, directory matchmaker.ServerDirectory, metrics metrics.MatchmakingMetrics, opts ...Option) *MatchMaker {
	mm := &MatchMaker{
		directory: directory,
		metrics:   metrics,
		buffers:   models.NewPool(),
		expiry:    cfg.TicketExpiry(),
		retention: cfg.ResolvedRetention(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(mm)
	}

	mm.store = ticketstore.New(ticketstore.WithClock(mm.now))
	mm.index = poolindex.New(mm.store)

	return mm
}

// EstimateWaitSeconds is max(5, 30 - 3*queueSize).
func EstimateWaitSeconds(queueSize int) int {
	return mathutil.Max(constants.WaitFloorSeconds, constants.WaitBaseSeconds-constants.WaitPerPlayerSeconds*queueSize)
}

func (mm *MatchMaker) JoinQueue(rootScope *envelope.Scope, playerID string, request models.MatchmakingRequest) models.MatchmakingTicket {
	scope := rootScope.NewChildScope("MatchMaker.JoinQueue")
	defer scope.Finish()

	ticket := mm.store.Create(playerID, request)
	poolKey := ticket.PoolKey()
	mm.index.AddToPool(poolKey, ticket)
	mm.metrics.AddTicketCreated(poolKey.String())

	scope.SetAttributes(envelope.TicketIDTag, ticket.TicketID)
	scope.SetAttributes(envelope.PoolKeyTag, poolKey.String())
	scope.Log.WithField("ticketID", ticket.TicketID).
		WithField("playerID", playerID).
		WithField("poolKey", poolKey).
		Info("ticket queued")

	return ticket
}

// GetStatus returns the status of a ticket. A searching ticket gets an on-demand match attempt against the first
// eligible server in directory order.
func (mm *MatchMaker) GetStatus(rootScope *envelope.Scope, ticketID string) models.MatchmakingStatus {
	scope := rootScope.NewChildScope("MatchMaker.GetStatus")
	defer scope.Finish()
	scope.SetAttributes(envelope.TicketIDTag, ticketID)

	ticket, err := mm.store.Get(ticketID)
	if err != nil {
		return models.ErrorStatus(models.ErrTicketNotFound.Error())
	}
	if ticket.Status.IsTerminal() {
		return statusOf(ticket)
	}

	log := scope.Log.WithField("ticketID", ticketID)

	servers, err := mm.directory.ListServers(scope, ticket.ServerQuery())
	if err != nil {
		log.WithError(err).Warn("server directory query failed, ticket stays searching")
		mm.metrics.AddDirectoryError(constants.MatchPathOnDemand)
		return mm.searchingStatus(ticket.PoolKey())
	}

	server, ok := firstEligible(ticket, servers)
	if !ok {
		return mm.searchingStatus(ticket.PoolKey())
	}

	resolved, err := mm.store.SetFound(ticketID, server)
	switch {
	case err == nil:
		scope.SetAttributes(envelope.ServerIDTag, server.ID)
		mm.unindex(resolved.PoolKey(), ticketID)
		mm.metrics.AddTicketMatched(resolved.PoolKey().String(), constants.MatchPathOnDemand)
		log.WithField("serverID", server.ID).Info("ticket matched on demand")
		return statusOf(resolved)
	case errors.Is(err, models.ErrAlreadyResolved):
		return statusOf(resolved)
	default:
		return models.ErrorStatus(models.ErrTicketNotFound.Error())
	}
}

// Cancel moves a searching ticket to cancelled and removes it from the store and its pool.
// Cancelling an unknown or already removed ticket is a no-op.
func (mm *MatchMaker) Cancel(rootScope *envelope.Scope, ticketID string) {
	scope := rootScope.NewChildScope("MatchMaker.Cancel")
	defer scope.Finish()

	if cancelled, err := mm.store.SetCancelled(ticketID); err == nil {
		mm.metrics.AddTicketCancelled(cancelled.PoolKey().String())
		scope.Log.WithField("ticketID", ticketID).Info("ticket cancelled")
	}

	mm.remove(ticketID)
}

// Release drops a ticket whose final status has been delivered to its owner.
func (mm *MatchMaker) Release(rootScope *envelope.Scope, ticketID string) {
	scope := rootScope.NewChildScope("MatchMaker.Release")
	defer scope.Finish()

	mm.remove(ticketID)
}

func (mm *MatchMaker) Resolved(ticketID string) <-chan struct{} {
	return mm.store.Resolved(ticketID)
}

// TicketOwner returns the player that queued the ticket, as long as the ticket is in the store.
func (mm *MatchMaker) TicketOwner(ticketID string) (string, bool) {
	ticket, err := mm.store.Get(ticketID)
	if err != nil {
		return "", false
	}
	return ticket.PlayerID, true
}

// PoolStats summarizes the waiting time of every non-empty pool.
func (mm *MatchMaker) PoolStats() []poolindex.PoolStats {
	return mm.index.Stats(mm.now())
}

func (mm *MatchMaker) remove(ticketID string) {
	if removed, ok := mm.store.Remove(ticketID); ok {
		mm.unindex(removed.PoolKey(), ticketID)
	}
}

// unindex drops the ticket from its pool and zeroes the queue size gauge of a pool it leaves empty.
func (mm *MatchMaker) unindex(key models.PoolKey, ticketID string) {
	if mm.index.RemoveFromPool(key, ticketID) {
		mm.metrics.SetPoolQueueSize(key.String(), 0)
	}
}

func (mm *MatchMaker) searchingStatus(key models.PoolKey) models.MatchmakingStatus {
	queueSize := mm.index.QueueSize(key)
	return models.SearchingStatus(queueSize, EstimateWaitSeconds(queueSize))
}

func firstEligible(ticket models.MatchmakingTicket, servers []models.ServerInfo) (models.ServerInfo, bool) {
	idx := pie.FindFirstUsing(servers, ticket.Accepts)
	if idx < 0 {
		return models.ServerInfo{}, false
	}
	return servers[idx], true
}

func statusOf(ticket models.MatchmakingTicket) models.MatchmakingStatus {
	switch ticket.Status {
	case models.TicketStatusFound:
		if ticket.FoundServer == nil {
			return models.ErrorStatus("ticket resolved without a server")
		}
		return models.FoundStatus(*ticket.FoundServer)
	case models.TicketStatusCancelled:
		return models.CancelledStatus()
	case models.TicketStatusExpired:
		return models.ErrorStatus("ticket expired")
	}
	return models.ErrorStatus("ticket is not resolved")
}
