// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package matchmaker provides the core interfaces between the matching engine, the session supervisor
// and the external collaborators (server directory and notification channel).
package matchmaker

import (
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

/*
ServerDirectory is the read-only view of currently live game servers. ListServers returns the servers matching
the query in directory order; that order is significant because the matching engine is first-fit.

A failing directory must return an error wrapping models.ErrDirectoryUnavailable. Callers treat that as transient:
the current attempt is skipped and retried on the next poll or sweep.
*/
type ServerDirectory interface {
	ListServers(scope *envelope.Scope, query models.ServerQuery) ([]models.ServerInfo, error)
}

// Notifier pushes events to live connections, either directly, through the player registry, or to a group.
type Notifier interface {
	// PushToConnection returns an error wrapping models.ErrConnectionGone when the connection is closed or
	// the write fails. The connection is detached in that case.
	PushToConnection(scope *envelope.Scope, connectionID string, event string, payload interface{}) error

	// PushToPlayer resolves the player's current connection and pushes to it.
	PushToPlayer(scope *envelope.Scope, playerID string, event string, payload interface{}) error

	// PushToGroup pushes to every member of the group. Failing members are detached; the joined error lists them.
	PushToGroup(scope *envelope.Scope, groupKey string, event string, payload interface{}) error

	JoinGroup(connectionID string, groupKey string)
	LeaveGroup(connectionID string, groupKey string)
}

// Matchmaker is the contract the matching engine exposes upward to the supervisor, hubs and REST handlers.
type Matchmaker interface {
	// JoinQueue creates a searching ticket for the player and indexes it in its pool. The request must already be
	// defaulted and validated.
	JoinQueue(scope *envelope.Scope, playerID string, request models.MatchmakingRequest) models.MatchmakingTicket

	// GetStatus returns the ticket's status, running an on-demand match attempt while it is still searching.
	GetStatus(scope *envelope.Scope, ticketID string) models.MatchmakingStatus

	// Cancel removes the ticket from the store and its pool. It is a no-op for unknown tickets.
	Cancel(scope *envelope.Scope, ticketID string)

	// Release removes a ticket whose terminal status was already delivered.
	Release(scope *envelope.Scope, ticketID string)

	// Resolved returns a channel closed once the ticket leaves the searching state or is removed.
	Resolved(ticketID string) <-chan struct{}
}
