// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-openapi/swag"
	"github.com/gorilla/websocket"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

// invocation is a frame sent by a client to call a hub method.
type invocation struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// InvocationResult answers one invocation. Error is empty on success.
type InvocationResult struct {
	ID     string      `json:"id,omitempty"`
	Method string      `json:"method"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   int         `json:"errorCode,omitempty"`
}

type method func(scope *envelope.Scope, connectionID string, args json.RawMessage) (interface{}, error)

// connectionHandler is the lifecycle a hub exposes to the websocket transport.
type connectionHandler interface {
	OnConnectionOpened(scope *envelope.Scope, connectionID string, identity auth.Identity)
	OnConnectionClosed(scope *envelope.Scope, connectionID string)
}

// ServeMatchmakingHub upgrades an authenticated player to the matchmaking channel.
func (s *Server) ServeMatchmakingHub(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Authenticate(r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.serveConnection(w, r, "matchmaking", identity, s.matchmakingHub, s.matchmakingMethods)
}

// ServeGameHub upgrades a connection to the game channel. Game servers connect anonymously and identify themselves
// with RegisterGameServer.
func (s *Server) ServeGameHub(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Authenticate(r)
	if err != nil {
		identity = auth.Identity{}
	}
	s.serveConnection(w, r, "game", identity, s.gameHub, s.gameMethods)
}

func (s *Server) serveConnection(w http.ResponseWriter, r *http.Request, hubName string, identity auth.Identity, handler connectionHandler, methods map[string]method) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	connectionID := utils.GenerateULID(time.Now())
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.serveConnection").
		WithField(envelope.ConnectionIDTag, connectionID).
		WithField("hub", hubName)
	defer scope.Finish()

	if identity.PlayerID != "" {
		scope = scope.WithField(envelope.PlayerIDTag, identity.PlayerID)
	}

	conn.SetReadLimit(constants.MaxFrameBytes)
	s.notifications.Attach(connectionID, conn)
	handler.OnConnectionOpened(scope, connectionID, identity)

	defer func() {
		handler.OnConnectionClosed(scope, connectionID)
		s.notifications.Detach(connectionID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				scope.Log.WithError(err).Info("websocket closed unexpectedly")
			}
			return
		}

		var frame invocation
		if err := json.Unmarshal(data, &frame); err != nil {
			s.reply(scope, connectionID, invocation{}, nil, invalidArgs(err))
			continue
		}

		call, ok := methods[frame.Method]
		if !ok {
			s.reply(scope, connectionID, frame, nil, fmt.Errorf("%w: unknown method %q", models.ErrInvalidRequest, frame.Method))
			continue
		}

		result, err := call(scope, connectionID, frame.Args)
		s.reply(scope, connectionID, frame, result, err)
	}
}

func (s *Server) reply(scope *envelope.Scope, connectionID string, frame invocation, result interface{}, err error) {
	answer := InvocationResult{ID: frame.ID, Method: frame.Method, Result: result}
	if err != nil {
		answer.Result = nil
		answer.Error = err.Error()
		answer.Code = models.ErrorCode(err)
	}
	if pushErr := s.notifications.PushToConnection(scope, connectionID, constants.EventInvocationResult, answer); pushErr != nil {
		scope.Log.WithError(pushErr).Debug("unable to answer invocation")
	}
}

func (s *Server) newMatchmakingMethods() map[string]method {
	return map[string]method{
		"StartMatchmaking": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args matchmakingArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return s.matchmakingHub.StartMatchmaking(scope, connectionID, args.request())
		},
		"CancelMatchmaking": func(scope *envelope.Scope, connectionID string, _ json.RawMessage) (interface{}, error) {
			return nil, s.matchmakingHub.CancelMatchmaking(scope, connectionID)
		},
		"JoinParty": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args partyArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.matchmakingHub.JoinParty(scope, connectionID, swag.StringValue(args.PartyCode))
		},
		"LeaveParty": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args partyArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.matchmakingHub.LeaveParty(scope, connectionID, swag.StringValue(args.PartyCode))
		},
	}
}

func (s *Server) newGameMethods() map[string]method {
	methods := map[string]method{
		"RegisterGameServer": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args registerServerArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.RegisterGameServer(scope, connectionID, swag.StringValue(args.ServerID), swag.StringValue(args.Token))
		},
		"JoinServer": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args serverArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.JoinServer(scope, connectionID, swag.StringValue(args.ServerID))
		},
		"LeaveServer": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args serverArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.LeaveServer(scope, connectionID, swag.StringValue(args.ServerID))
		},
		"SendChatMessage": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args chatArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.SendChatMessage(scope, connectionID, swag.StringValue(args.ServerID), swag.StringValue(args.Message))
		},
		"VoiceActivity": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args voiceArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.VoiceActivity(scope, connectionID, swag.StringValue(args.ServerID), swag.BoolValue(args.IsSpeaking))
		},
		"NotifyPlayer": func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			var args notifyPlayerArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, s.gameHub.NotifyPlayer(scope, connectionID, swag.StringValue(args.PlayerID), swag.StringValue(args.Type), swag.StringValue(args.Message))
		},
	}

	for _, event := range []string{
		constants.EventGameState,
		constants.EventWaveStart,
		constants.EventPlayerDeath,
		constants.EventPlayerRevive,
		constants.EventGameEnd,
	} {
		event := event
		methods["Broadcast"+event] = func(scope *envelope.Scope, connectionID string, raw json.RawMessage) (interface{}, error) {
			return nil, s.gameHub.Broadcast(scope, connectionID, event, raw)
		}
	}

	return methods
}

func invalidArgs(err error) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidRequest, err.Error())
}
