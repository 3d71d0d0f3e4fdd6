// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package hubs

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/registry"
	"github.com/AccelByte/extend-server-matchmaker/pkg/testsetup"
)

type stubServerAuthenticator map[string]string

func (s stubServerAuthenticator) ValidateToken(serverID string, token string) error {
	expected, ok := s[serverID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrServerNotFound, serverID)
	}
	if expected != token {
		return models.ErrInvalidServerToken
	}
	return nil
}

func newGameHub() (*GameHub, *registry.Registry, *testsetup.RecordingNotifier) {
	reg := registry.New()
	notifier := testsetup.NewRecordingNotifier()
	hub := NewGameHub(reg, notifier, stubServerAuthenticator{"s1": "secret"})
	hub.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return hub, reg, notifier
}

func TestGameHub_RegisterGameServer(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, reg, notifier := newGameHub()

	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s1", "wrong")).To(MatchError(models.ErrInvalidServerToken))
	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s9", "secret")).To(MatchError(models.ErrServerNotFound))
	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s1", "secret")).To(Succeed())

	serverID, ok := reg.LookupServer("srv-conn")
	g.Expect(ok).To(BeTrue())
	g.Expect(serverID).To(Equal("s1"))
	g.Expect(notifier.GroupMembers(constants.GroupGameServers)).To(ConsistOf("srv-conn"))
	g.Expect(notifier.GroupMembers("server_s1")).To(ConsistOf("srv-conn"))

	hub.OnConnectionClosed(g.TestScope, "srv-conn")
	_, ok = reg.LookupServer("srv-conn")
	g.Expect(ok).To(BeFalse())
}

func TestGameHub_ServerReconnectMovesGroups(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()

	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn-1", "s1", "secret")).To(Succeed())
	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn-2", "s1", "secret")).To(Succeed())

	g.Expect(notifier.GroupMembers(constants.GroupGameServers)).To(ConsistOf("srv-conn-2"))
}

func TestGameHub_ChatMessage(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()
	hub.OnConnectionOpened(g.TestScope, "conn-1", auth.Identity{PlayerID: "alice", DisplayName: "Alice"})

	g.Expect(hub.JoinServer(g.TestScope, "conn-1", "s1")).To(Succeed())
	g.Expect(notifier.GroupMembers("server_s1")).To(ConsistOf("conn-1"))

	g.Expect(hub.SendChatMessage(g.TestScope, "conn-1", "s1", "  hello  ")).To(Succeed())
	g.Expect(notifier.Pushes()).To(Equal([]testsetup.Push{{
		Target: "server_s1",
		Event:  constants.EventChatMessage,
		Payload: chatEvent{
			PlayerID:    "alice",
			DisplayName: "Alice",
			Message:     "hello",
			Timestamp:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}}))

	g.Expect(hub.SendChatMessage(g.TestScope, "conn-1", "s1", "   ")).To(MatchError(models.ErrInvalidRequest))
	g.Expect(hub.SendChatMessage(g.TestScope, "conn-1", "s1", strings.Repeat("x", 501))).To(MatchError(models.ErrInvalidRequest))

	g.Expect(hub.LeaveServer(g.TestScope, "conn-1", "s1")).To(Succeed())
	g.Expect(notifier.GroupMembers("server_s1")).To(BeEmpty())
}

func TestGameHub_AnonymousConnectionCannotChat(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()
	hub.OnConnectionOpened(g.TestScope, "conn-1", auth.Identity{})

	g.Expect(hub.JoinServer(g.TestScope, "conn-1", "s1")).To(MatchError(models.ErrNotAuthenticated))
	g.Expect(hub.SendChatMessage(g.TestScope, "conn-1", "s1", "hi")).To(MatchError(models.ErrNotAuthenticated))
	g.Expect(hub.VoiceActivity(g.TestScope, "conn-1", "s1", true)).To(MatchError(models.ErrNotAuthenticated))
	g.Expect(notifier.Pushes()).To(BeEmpty())
}

func TestGameHub_VoiceActivity(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()
	hub.OnConnectionOpened(g.TestScope, "conn-1", auth.Identity{PlayerID: "alice"})

	g.Expect(hub.VoiceActivity(g.TestScope, "conn-1", "s1", true)).To(Succeed())
	g.Expect(notifier.Pushes()).To(Equal([]testsetup.Push{{
		Target:  "server_s1",
		Event:   constants.EventVoiceActivity,
		Payload: voiceEvent{PlayerID: "alice", IsSpeaking: true},
	}}))
}

func TestGameHub_Broadcast(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()
	payload := json.RawMessage(`{"wave":3}`)

	g.Expect(hub.Broadcast(g.TestScope, "srv-conn", constants.EventWaveStart, payload)).To(MatchError(models.ErrNotAuthenticated))

	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s1", "secret")).To(Succeed())
	g.Expect(hub.Broadcast(g.TestScope, "srv-conn", "Unknown", payload)).To(MatchError(models.ErrInvalidRequest))
	g.Expect(hub.Broadcast(g.TestScope, "srv-conn", constants.EventWaveStart, payload)).To(Succeed())

	g.Expect(notifier.Pushes()).To(Equal([]testsetup.Push{{
		Target:  "server_s1",
		Event:   constants.EventWaveStart,
		Payload: payload,
	}}))
}

func TestGameHub_DropServer(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, reg, notifier := newGameHub()

	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s1", "secret")).To(Succeed())
	g.Expect(hub.RegisteredServers()).To(Equal([]string{"s1"}))

	hub.DropServer(g.TestScope, "s1")
	hub.DropServer(g.TestScope, "s1")

	_, ok := reg.LookupServer("srv-conn")
	g.Expect(ok).To(BeFalse())
	g.Expect(hub.RegisteredServers()).To(BeEmpty())
	g.Expect(notifier.GroupMembers(constants.GroupGameServers)).To(BeEmpty())
	g.Expect(notifier.GroupMembers("server_s1")).To(BeEmpty())
	g.Expect(hub.Broadcast(g.TestScope, "srv-conn", constants.EventGameEnd, json.RawMessage(`{}`))).To(MatchError(models.ErrNotAuthenticated))
}

func TestGameHub_NotifyPlayer(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	hub, _, notifier := newGameHub()
	notifier.SetPlayerConnection("alice", "mm-conn")

	g.Expect(hub.NotifyPlayer(g.TestScope, "srv-conn", "alice", "info", "hi")).To(MatchError(models.ErrNotAuthenticated))

	g.Expect(hub.RegisterGameServer(g.TestScope, "srv-conn", "s1", "secret")).To(Succeed())
	g.Expect(hub.NotifyPlayer(g.TestScope, "srv-conn", "alice", "info", "server restarting")).To(Succeed())
	g.Expect(hub.NotifyPlayer(g.TestScope, "srv-conn", "bob", "info", "hi")).To(MatchError(models.ErrConnectionGone))

	g.Expect(notifier.Pushes()).To(Equal([]testsetup.Push{{
		Target:  "mm-conn",
		Event:   constants.EventNotification,
		Payload: notificationEvent{
			Type:      "info",
			Message:   "server restarting",
			Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}}))
}
