// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"fmt"
	"sync"

	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

type Push struct {
	Target  string
	Event   string
	Payload interface{}
}

// RecordingNotifier records pushes instead of delivering them. Connections marked with FailConnection reject
// every push with models.ErrConnectionGone.
type RecordingNotifier struct {
	mu      sync.Mutex
	pushes  []Push
	failing map[string]bool
	groups  map[string][]string
	players map[string]string
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{
		failing: map[string]bool{},
		groups:  map[string][]string{},
		players: map[string]string{},
	}
}

func (n *RecordingNotifier) PushToConnection(_ *envelope.Scope, connectionID string, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failing[connectionID] {
		return fmt.Errorf("%w: %s", models.ErrConnectionGone, connectionID)
	}
	n.pushes = append(n.pushes, Push{Target: connectionID, Event: event, Payload: payload})
	return nil
}

func (n *RecordingNotifier) PushToPlayer(scope *envelope.Scope, playerID string, event string, payload interface{}) error {
	n.mu.Lock()
	connectionID, ok := n.players[playerID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: player %s", models.ErrConnectionGone, playerID)
	}
	return n.PushToConnection(scope, connectionID, event, payload)
}

func (n *RecordingNotifier) PushToGroup(_ *envelope.Scope, groupKey string, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pushes = append(n.pushes, Push{Target: groupKey, Event: event, Payload: payload})
	return nil
}

func (n *RecordingNotifier) JoinGroup(connectionID string, groupKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !pie.Contains(n.groups[groupKey], connectionID) {
		n.groups[groupKey] = append(n.groups[groupKey], connectionID)
	}
}

func (n *RecordingNotifier) LeaveGroup(connectionID string, groupKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.groups[groupKey] = pie.FilterNot(n.groups[groupKey], func(id string) bool {
		return id == connectionID
	})
}

// SetPlayerConnection routes PushToPlayer for the player to the connection.
func (n *RecordingNotifier) SetPlayerConnection(playerID string, connectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.players[playerID] = connectionID
}

func (n *RecordingNotifier) FailConnection(connectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[connectionID] = true
}

func (n *RecordingNotifier) GroupMembers(groupKey string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.groups[groupKey]...)
}

func (n *RecordingNotifier) Pushes() []Push {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Push(nil), n.pushes...)
}

// Events returns the names of the events pushed to target, in order.
func (n *RecordingNotifier) Events(target string) []string {
	return pie.Map(pie.Filter(n.Pushes(), func(p Push) bool {
		return p.Target == target
	}), func(p Push) string {
		return p.Event
	})
}
