// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package hubs implements the methods players and game servers invoke over their live connections.
package hubs

import (
	"fmt"
	"regexp"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/registry"
	"github.com/AccelByte/extend-server-matchmaker/pkg/supervisor"
)

var partyCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

type ticketEvent struct {
	TicketID string `json:"ticketId,omitempty"`
}

type errorEvent struct {
	Message string `json:"message"`
}

type partyEvent struct {
	PlayerID string `json:"playerId"`
}

// MatchmakingHub serves the player-facing matchmaking channel.
type MatchmakingHub struct {
	registry   *registry.Registry
	supervisor *supervisor.Supervisor
	notifier   matchmaker.Notifier
}

func NewMatchmakingHub(registry *registry.Registry, supervisor *supervisor.Supervisor, notifier matchmaker.Notifier) *MatchmakingHub {
	return &MatchmakingHub{
		registry:   registry,
		supervisor: supervisor,
		notifier:   notifier,
	}
}

// OnConnectionOpened binds the player to the connection. A previous connection of the same player loses the binding
// and its running search is cancelled.
func (h *MatchmakingHub) OnConnectionOpened(rootScope *envelope.Scope, connectionID string, identity auth.Identity) {
	scope := rootScope.NewChildScope("MatchmakingHub.OnConnectionOpened")
	defer scope.Finish()

	log := scope.Log.WithField("connectionID", connectionID).WithField("playerID", identity.PlayerID)

	if evicted, ok := h.registry.BindPlayer(connectionID, identity.PlayerID); ok {
		if ticketID, cancelled := h.supervisor.CancelSearch(scope, evicted); cancelled {
			log.WithField("ticketID", ticketID).Info("reconnect cancelled the search of the previous connection")
		}
	}
	h.supervisor.Open(scope, connectionID, identity.PlayerID)

	log.Info("player connected")
}

// OnConnectionClosed cancels the connection's search and drops its player binding.
func (h *MatchmakingHub) OnConnectionClosed(rootScope *envelope.Scope, connectionID string) {
	scope := rootScope.NewChildScope("MatchmakingHub.OnConnectionClosed")
	defer scope.Finish()

	h.supervisor.Close(scope, connectionID)
	playerID, _ := h.registry.UnbindPlayer(connectionID)

	scope.Log.WithField("connectionID", connectionID).WithField("playerID", playerID).Info("player disconnected")
}

func (h *MatchmakingHub) StartMatchmaking(rootScope *envelope.Scope, connectionID string, request models.MatchmakingRequest) (models.MatchmakingTicket, error) {
	scope := rootScope.NewChildScope("MatchmakingHub.StartMatchmaking")
	defer scope.Finish()

	request.SetDefaultValues()
	if err := request.Validate(); err != nil {
		h.pushError(scope, connectionID, err)
		return models.MatchmakingTicket{}, err
	}

	ticket, err := h.supervisor.StartSearch(scope, connectionID, request)
	if err != nil {
		return models.MatchmakingTicket{}, err
	}
	return ticket, nil
}

// CancelMatchmaking stops the connection's search. The caller is answered with MatchmakingCancelled even when no
// search was running; the ticket id is only set when one was.
func (h *MatchmakingHub) CancelMatchmaking(rootScope *envelope.Scope, connectionID string) error {
	scope := rootScope.NewChildScope("MatchmakingHub.CancelMatchmaking")
	defer scope.Finish()

	ticketID, _ := h.supervisor.CancelSearch(scope, connectionID)
	return h.notifier.PushToConnection(scope, connectionID, constants.EventMatchmakingCancelled, ticketEvent{TicketID: ticketID})
}

func (h *MatchmakingHub) JoinParty(rootScope *envelope.Scope, connectionID string, partyCode string) error {
	scope := rootScope.NewChildScope("MatchmakingHub.JoinParty")
	defer scope.Finish()

	playerID, group, err := h.partyMember(connectionID, partyCode)
	if err != nil {
		return err
	}

	h.notifier.JoinGroup(connectionID, group)
	if err := h.notifier.PushToGroup(scope, group, constants.EventPartyMemberJoined, partyEvent{PlayerID: playerID}); err != nil {
		scope.Log.WithError(err).WithField("partyCode", partyCode).Warn("party notification partially failed")
	}
	return nil
}

func (h *MatchmakingHub) LeaveParty(rootScope *envelope.Scope, connectionID string, partyCode string) error {
	scope := rootScope.NewChildScope("MatchmakingHub.LeaveParty")
	defer scope.Finish()

	playerID, group, err := h.partyMember(connectionID, partyCode)
	if err != nil {
		return err
	}

	h.notifier.LeaveGroup(connectionID, group)
	if err := h.notifier.PushToGroup(scope, group, constants.EventPartyMemberLeft, partyEvent{PlayerID: playerID}); err != nil {
		scope.Log.WithError(err).WithField("partyCode", partyCode).Warn("party notification partially failed")
	}
	return nil
}

func (h *MatchmakingHub) partyMember(connectionID string, partyCode string) (string, string, error) {
	playerID, ok := h.registry.LookupPlayer(connectionID)
	if !ok {
		return "", "", fmt.Errorf("%w: connection %s has no player", models.ErrNotAuthenticated, connectionID)
	}
	if !partyCodePattern.MatchString(partyCode) {
		return "", "", fmt.Errorf("%w: invalid party code %q", models.ErrInvalidRequest, partyCode)
	}
	return playerID, constants.PartyGroup(partyCode), nil
}

func (h *MatchmakingHub) pushError(scope *envelope.Scope, connectionID string, cause error) {
	if err := h.notifier.PushToConnection(scope, connectionID, constants.EventMatchmakingError, errorEvent{Message: cause.Error()}); err != nil {
		scope.Log.WithError(err).Info("unable to deliver matchmaking error")
	}
}
