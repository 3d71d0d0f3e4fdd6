// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *websocket.Conn, id string, method string, args interface{}) {
	data, err := json.Marshal(args)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(invocation{ID: id, Method: method, Args: data}))
}

// readUntil reads frames until one carries the event, failing after a few seconds.
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(frame) bool) frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event && (match == nil || match(f)) {
			return f
		}
	}
}

func resultOf(id string) func(frame) bool {
	return func(f frame) bool {
		var result InvocationResult
		return json.Unmarshal(f.Payload, &result) == nil && result.ID == id
	}
}

func TestMatchmakingHub_RejectsAnonymousUpgrade(t *testing.T) {
	t.Parallel()
	f := newFixture(t, auth.NewVerifier("", ""))
	server := httptest.NewServer(f.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/hubs/matchmaking"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMatchmakingHub_SearchOverWebsocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t, auth.NewVerifier("", ""))
	server := httptest.NewServer(f.handler)
	defer server.Close()

	conn := dial(t, server, "/hubs/matchmaking?playerId=alice")

	invoke(t, conn, "1", "StartMatchmaking", map[string]interface{}{"gameMode": "survival"})
	started := readUntil(t, conn, constants.EventMatchmakingStarted, nil)
	var payload struct {
		TicketID string `json:"ticketId"`
	}
	require.NoError(t, json.Unmarshal(started.Payload, &payload))
	assert.NotEmpty(t, payload.TicketID)

	f.registerServer(t, "eu-1")

	update := readUntil(t, conn, constants.EventMatchmakingUpdate, func(f frame) bool {
		var status models.MatchmakingStatus
		return json.Unmarshal(f.Payload, &status) == nil && status.Status == models.MatchmakingStatusFound
	})
	var status models.MatchmakingStatus
	require.NoError(t, json.Unmarshal(update.Payload, &status))
	assert.Equal(t, "mall", status.FoundServer.MapName)
}

func TestMatchmakingHub_InvocationErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, auth.NewVerifier("", ""))
	server := httptest.NewServer(f.handler)
	defer server.Close()

	conn := dial(t, server, "/hubs/matchmaking?playerId=alice")

	invoke(t, conn, "1", "Explode", nil)
	var result InvocationResult
	require.NoError(t, json.Unmarshal(readUntil(t, conn, constants.EventInvocationResult, resultOf("1")).Payload, &result))
	assert.Equal(t, models.ErrorCode(models.ErrInvalidRequest), result.Code)

	invoke(t, conn, "2", "JoinParty", map[string]interface{}{"partyCode": "has space"})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, constants.EventInvocationResult, resultOf("2")).Payload, &result))
	assert.Contains(t, result.Error, "party code")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	readUntil(t, conn, constants.EventInvocationResult, func(f frame) bool {
		var r InvocationResult
		return json.Unmarshal(f.Payload, &r) == nil && r.ID == "" && r.Error != ""
	})
}

func TestGameHub_ServerBroadcastReachesPlayers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, auth.NewVerifier("", ""))
	server := httptest.NewServer(f.handler)
	defer server.Close()

	registered := f.registerServer(t, "eu-1")

	gameServer := dial(t, server, "/hubs/game")
	invoke(t, gameServer, "1", "RegisterGameServer", map[string]interface{}{"serverId": registered.Server.ID, "token": registered.Token})
	var result InvocationResult
	require.NoError(t, json.Unmarshal(readUntil(t, gameServer, constants.EventInvocationResult, resultOf("1")).Payload, &result))
	require.Empty(t, result.Error)

	player := dial(t, server, "/hubs/game?playerId=alice")
	invoke(t, player, "1", "JoinServer", map[string]interface{}{"serverId": registered.Server.ID})
	readUntil(t, player, constants.EventInvocationResult, resultOf("1"))

	invoke(t, gameServer, "2", "Broadcast"+constants.EventWaveStart, map[string]interface{}{"wave": 3})
	wave := readUntil(t, player, constants.EventWaveStart, nil)
	assert.JSONEq(t, `{"wave":3}`, string(wave.Payload))

	invoke(t, player, "2", "SendChatMessage", map[string]interface{}{"serverId": registered.Server.ID, "message": "incoming"})
	chat := readUntil(t, gameServer, constants.EventChatMessage, nil)
	assert.Contains(t, string(chat.Payload), "incoming")
}

func TestGameHub_UnregisteredServerCannotBroadcast(t *testing.T) {
	t.Parallel()
	f := newFixture(t, auth.NewVerifier("", ""))
	server := httptest.NewServer(f.handler)
	defer server.Close()

	conn := dial(t, server, "/hubs/game")
	invoke(t, conn, "1", "Broadcast"+constants.EventGameEnd, map[string]interface{}{})

	var result InvocationResult
	require.NoError(t, json.Unmarshal(readUntil(t, conn, constants.EventInvocationResult, resultOf("1")).Payload, &result))
	assert.Equal(t, models.ErrorCode(models.ErrNotAuthenticated), result.Code)
}
