// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package hubs

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/registry"
	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

const maxChatMessageLength = 500

// ServerAuthenticator checks the token a game server received when it registered in the directory.
type ServerAuthenticator interface {
	ValidateToken(serverID string, token string) error
}

// broadcastEvents are the events a registered game server may send to the players of its server group.
var broadcastEvents = []string{
	constants.EventGameState,
	constants.EventWaveStart,
	constants.EventPlayerDeath,
	constants.EventPlayerRevive,
	constants.EventGameEnd,
}

type chatEvent struct {
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type voiceEvent struct {
	PlayerID   string `json:"playerId"`
	IsSpeaking bool   `json:"isSpeaking"`
}

type notificationEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GameHub serves the in-game channel shared by players and game servers. Players are identified when they
// connect; game servers identify themselves with RegisterGameServer.
type GameHub struct {
	registry *registry.Registry
	notifier matchmaker.Notifier
	servers  ServerAuthenticator
	now      func() time.Time

	mu      sync.RWMutex
	players map[string]auth.Identity
}

func NewGameHub(registry *registry.Registry, notifier matchmaker.Notifier, servers ServerAuthenticator) *GameHub {
	return &GameHub{
		registry: registry,
		notifier: notifier,
		servers:  servers,
		now:      time.Now,
		players:  make(map[string]auth.Identity),
	}
}

// OnConnectionOpened records the player behind the connection. Anonymous connections may only register as servers.
func (h *GameHub) OnConnectionOpened(_ *envelope.Scope, connectionID string, identity auth.Identity) {
	if identity.PlayerID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[connectionID] = identity
}

func (h *GameHub) OnConnectionClosed(rootScope *envelope.Scope, connectionID string) {
	scope := rootScope.NewChildScope("GameHub.OnConnectionClosed")
	defer scope.Finish()

	h.mu.Lock()
	delete(h.players, connectionID)
	h.mu.Unlock()

	if serverID, ok := h.registry.UnbindServer(connectionID); ok {
		scope.Log.WithField("serverID", serverID).WithField("connectionID", connectionID).Info("game server disconnected")
	}
}

func (h *GameHub) RegisterGameServer(rootScope *envelope.Scope, connectionID string, serverID string, token string) error {
	scope := rootScope.NewChildScope("GameHub.RegisterGameServer")
	defer scope.Finish()

	scope.SetAttributes(envelope.ServerIDTag, serverID)

	if err := h.servers.ValidateToken(serverID, token); err != nil {
		return err
	}

	if evicted, ok := h.registry.BindServer(connectionID, serverID); ok {
		h.notifier.LeaveGroup(evicted, constants.GroupGameServers)
		h.notifier.LeaveGroup(evicted, constants.ServerGroup(serverID))
	}
	h.notifier.JoinGroup(connectionID, constants.GroupGameServers)
	h.notifier.JoinGroup(connectionID, constants.ServerGroup(serverID))

	scope.Log.WithField("serverID", serverID).WithField("connectionID", connectionID).Info("game server connected")
	return nil
}

// DropServer unbinds the game connection of a server that left the directory. The connection stays open but loses its
// server groups and can no longer broadcast.
func (h *GameHub) DropServer(rootScope *envelope.Scope, serverID string) {
	scope := rootScope.NewChildScope("GameHub.DropServer")
	defer scope.Finish()
	scope.SetAttributes(envelope.ServerIDTag, serverID)

	connectionID, ok := h.registry.UnregisterServer(serverID)
	if !ok {
		return
	}
	h.notifier.LeaveGroup(connectionID, constants.GroupGameServers)
	h.notifier.LeaveGroup(connectionID, constants.ServerGroup(serverID))

	scope.Log.WithField("serverID", serverID).WithField("connectionID", connectionID).Info("game server dropped")
}

// RegisteredServers returns the ids of the servers holding a game connection.
func (h *GameHub) RegisteredServers() []string {
	return h.registry.ServerIDs()
}

func (h *GameHub) JoinServer(_ *envelope.Scope, connectionID string, serverID string) error {
	if _, err := h.player(connectionID); err != nil {
		return err
	}
	if strings.TrimSpace(serverID) == "" {
		return fmt.Errorf("%w: server id is required", models.ErrInvalidRequest)
	}
	h.notifier.JoinGroup(connectionID, constants.ServerGroup(serverID))
	return nil
}

func (h *GameHub) LeaveServer(_ *envelope.Scope, connectionID string, serverID string) error {
	if _, err := h.player(connectionID); err != nil {
		return err
	}
	h.notifier.LeaveGroup(connectionID, constants.ServerGroup(serverID))
	return nil
}

func (h *GameHub) SendChatMessage(rootScope *envelope.Scope, connectionID string, serverID string, message string) error {
	scope := rootScope.NewChildScope("GameHub.SendChatMessage")
	defer scope.Finish()

	identity, err := h.player(connectionID)
	if err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxChatMessageLength {
		return fmt.Errorf("%w: chat message must be 1 to %d characters", models.ErrInvalidRequest, maxChatMessageLength)
	}

	return h.notifier.PushToGroup(scope, constants.ServerGroup(serverID), constants.EventChatMessage, chatEvent{
		PlayerID:    identity.PlayerID,
		DisplayName: identity.DisplayName,
		Message:     message,
		Timestamp:   h.now().UTC(),
	})
}

func (h *GameHub) VoiceActivity(rootScope *envelope.Scope, connectionID string, serverID string, isSpeaking bool) error {
	scope := rootScope.NewChildScope("GameHub.VoiceActivity")
	defer scope.Finish()

	identity, err := h.player(connectionID)
	if err != nil {
		return err
	}

	return h.notifier.PushToGroup(scope, constants.ServerGroup(serverID), constants.EventVoiceActivity, voiceEvent{
		PlayerID:   identity.PlayerID,
		IsSpeaking: isSpeaking,
	})
}

// Broadcast relays a game event from a registered server to the players of that server.
func (h *GameHub) Broadcast(rootScope *envelope.Scope, connectionID string, event string, payload json.RawMessage) error {
	scope := rootScope.NewChildScope("GameHub.Broadcast")
	defer scope.Finish()

	serverID, err := h.server(connectionID)
	if err != nil {
		return err
	}
	if !utils.Contains(broadcastEvents, event) {
		return fmt.Errorf("%w: unknown game event %q", models.ErrInvalidRequest, event)
	}

	return h.notifier.PushToGroup(scope, constants.ServerGroup(serverID), event, payload)
}

// NotifyPlayer lets a registered server send a notification to a player's matchmaking connection.
func (h *GameHub) NotifyPlayer(rootScope *envelope.Scope, connectionID string, playerID string, kind string, message string) error {
	scope := rootScope.NewChildScope("GameHub.NotifyPlayer")
	defer scope.Finish()

	if _, err := h.server(connectionID); err != nil {
		return err
	}

	return h.notifier.PushToPlayer(scope, playerID, constants.EventNotification, notificationEvent{
		Type:      kind,
		Message:   message,
		Timestamp: h.now().UTC(),
	})
}

func (h *GameHub) player(connectionID string) (auth.Identity, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	identity, ok := h.players[connectionID]
	if !ok {
		return auth.Identity{}, fmt.Errorf("%w: connection %s has no player", models.ErrNotAuthenticated, connectionID)
	}
	return identity, nil
}

func (h *GameHub) server(connectionID string) (string, error) {
	serverID, ok := h.registry.LookupServer(connectionID)
	if !ok {
		return "", fmt.Errorf("%w: connection %s is not a registered game server", models.ErrNotAuthenticated, connectionID)
	}
	return serverID, nil
}
