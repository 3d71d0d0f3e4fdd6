// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package notification delivers events to live websocket connections, one at a time or by group.
package notification

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

var _ matchmaker.Notifier = (*Hub)(nil)

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// PlayerLocator resolves the connection currently owned by a player.
type PlayerLocator interface {
	LookupConnection(playerID string) (string, bool)
}

// Message is the frame written for every pushed event.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type attached struct {
	conn   Conn
	writes sync.Mutex
	groups map[string]struct{}
}

// Hub tracks attached connections and group membership under one lock. Writes happen outside that lock,
// serialized per connection.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]*attached
	groups       map[string]map[string]struct{}
	players      PlayerLocator
	writeTimeout time.Duration
	metrics      metrics.MatchmakingMetrics
}

func NewHub(players PlayerLocator, writeTimeout time.Duration, metrics metrics.MatchmakingMetrics) *Hub {
	return &Hub{
		connections:  make(map[string]*attached),
		groups:       make(map[string]map[string]struct{}),
		players:      players,
		writeTimeout: writeTimeout,
		metrics:      metrics,
	}
}

func (h *Hub) Attach(connectionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[connectionID] = &attached{
		conn:   conn,
		groups: make(map[string]struct{}),
	}
}

// Detach forgets the connection, removes it from its groups and closes it. Detaching twice is a no-op.
func (h *Hub) Detach(connectionID string) {
	h.mu.Lock()
	a, ok := h.connections[connectionID]
	if ok {
		delete(h.connections, connectionID)
		for group := range a.groups {
			h.leaveLocked(connectionID, group)
		}
	}
	h.mu.Unlock()

	if ok {
		_ = a.conn.Close()
	}
}

func (h *Hub) PushToConnection(scope *envelope.Scope, connectionID string, event string, payload interface{}) error {
	h.mu.RLock()
	a, ok := h.connections[connectionID]
	h.mu.RUnlock()

	if !ok {
		h.metrics.AddFailedPush(event)
		return fmt.Errorf("%w: %s", models.ErrConnectionGone, connectionID)
	}

	if err := a.write(Message{Event: event, Payload: payload}, h.writeTimeout); err != nil {
		scope.Log.WithField("connectionID", connectionID).
			WithField("event", event).
			WithError(err).
			Warn("push failed, detaching connection")
		h.metrics.AddFailedPush(event)
		h.Detach(connectionID)
		return fmt.Errorf("%w: %s: %s", models.ErrConnectionGone, connectionID, err.Error())
	}

	return nil
}

func (h *Hub) PushToPlayer(scope *envelope.Scope, playerID string, event string, payload interface{}) error {
	connectionID, ok := h.players.LookupConnection(playerID)
	if !ok {
		h.metrics.AddFailedPush(event)
		return fmt.Errorf("%w: player %s has no connection", models.ErrConnectionGone, playerID)
	}
	return h.PushToConnection(scope, connectionID, event, payload)
}

// PushToGroup pushes to every member. Failing members are detached and their errors joined.
func (h *Hub) PushToGroup(scope *envelope.Scope, groupKey string, event string, payload interface{}) error {
	var errs []error
	for _, connectionID := range h.GroupMembers(groupKey) {
		if err := h.PushToConnection(scope, connectionID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JoinGroup adds an attached connection to the group; unknown connections are ignored.
func (h *Hub) JoinGroup(connectionID string, groupKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.connections[connectionID]
	if !ok {
		return
	}
	members, ok := h.groups[groupKey]
	if !ok {
		members = make(map[string]struct{})
		h.groups[groupKey] = members
	}
	members[connectionID] = struct{}{}
	a.groups[groupKey] = struct{}{}
}

func (h *Hub) LeaveGroup(connectionID string, groupKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.connections[connectionID]; ok {
		delete(a.groups, groupKey)
	}
	h.leaveLocked(connectionID, groupKey)
}

func (h *Hub) leaveLocked(connectionID string, groupKey string) {
	members, ok := h.groups[groupKey]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.groups, groupKey)
	}
}

// GroupMembers returns the connection ids of the group in lexical order.
func (h *Hub) GroupMembers(groupKey string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.groups[groupKey]))
	for connectionID := range h.groups[groupKey] {
		members = append(members, connectionID)
	}
	sort.Strings(members)
	return members
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (a *attached) write(message Message, timeout time.Duration) error {
	a.writes.Lock()
	defer a.writes.Unlock()

	if err := a.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return a.conn.WriteJSON(message)
}
