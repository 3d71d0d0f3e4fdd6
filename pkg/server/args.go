// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"encoding/json"

	"github.com/go-openapi/swag"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// matchmakingArgs is the body of a join request. Every field is optional.
type matchmakingArgs struct {
	GameMode        *string `json:"gameMode,omitempty"`
	PreferredRegion *string `json:"preferredRegion,omitempty"`
	PreferredMap    *string `json:"preferredMap,omitempty"`
	MinPlayers      *int    `json:"minPlayers,omitempty"`
	MaxPlayers      *int    `json:"maxPlayers,omitempty"`
}

func (a matchmakingArgs) request() models.MatchmakingRequest {
	return models.MatchmakingRequest{
		GameMode:        swag.StringValue(a.GameMode),
		PreferredRegion: models.Region(swag.StringValue(a.PreferredRegion)),
		PreferredMap:    swag.StringValue(a.PreferredMap),
		MinPlayers:      swag.IntValue(a.MinPlayers),
		MaxPlayers:      swag.IntValue(a.MaxPlayers),
	}
}

type partyArgs struct {
	PartyCode *string `json:"partyCode"`
}

type serverArgs struct {
	ServerID *string `json:"serverId"`
}

type registerServerArgs struct {
	ServerID *string `json:"serverId"`
	Token    *string `json:"token"`
}

type chatArgs struct {
	ServerID *string `json:"serverId"`
	Message  *string `json:"message"`
}

type voiceArgs struct {
	ServerID   *string `json:"serverId"`
	IsSpeaking *bool   `json:"isSpeaking"`
}

type notifyPlayerArgs struct {
	PlayerID *string `json:"playerId"`
	Type     *string `json:"type"`
	Message  *string `json:"message"`
}

// decodeArgs unmarshals invocation arguments. Missing arguments leave v at its zero value.
func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidArgs(err)
	}
	return nil
}
