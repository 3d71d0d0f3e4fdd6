// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package constants

import "time"

// Request defaults applied when the client leaves a field empty.
const (
	DefaultGameMode   = "survival"
	DefaultMinPlayers = 1
	DefaultMaxPlayers = 8
)

const (
	TicketExpiry          = 5 * time.Minute
	ResolvedRetention     = time.Minute
	SweepInterval         = 3 * time.Second
	PollInterval          = time.Second
	PollMaxAttempts       = 120
	DirectoryHeartbeatTTL = 60 * time.Second
)

// Estimated wait is max(WaitFloorSeconds, WaitBaseSeconds - WaitPerPlayerSeconds*queueSize).
const (
	WaitBaseSeconds      = 30
	WaitPerPlayerSeconds = 3
	WaitFloorSeconds     = 5
)

const (
	MatchPathOnDemand = "on_demand"
	MatchPathSweep    = "sweep"
)

// Events pushed over the player-facing channel.
const (
	EventMatchmakingStarted   = "MatchmakingStarted"
	EventMatchmakingUpdate    = "MatchmakingUpdate"
	EventMatchmakingCancelled = "MatchmakingCancelled"
	EventMatchmakingTimeout   = "MatchmakingTimeout"
	EventMatchmakingError     = "MatchmakingError"
	EventPartyMemberJoined    = "PartyMemberJoined"
	EventPartyMemberLeft      = "PartyMemberLeft"
	EventNotification         = "Notification"
)

// EventInvocationResult answers every method a client invokes over a live connection.
const EventInvocationResult = "InvocationResult"

const (
	ServerTokenHeader = "X-Server-Token"
	MaxFrameBytes     = 64 * 1024
)

// Events pushed over the game channel.
const (
	EventChatMessage   = "ChatMessage"
	EventVoiceActivity = "VoiceActivity"
	EventGameState     = "GameState"
	EventWaveStart     = "WaveStart"
	EventPlayerDeath   = "PlayerDeath"
	EventPlayerRevive  = "PlayerRevive"
	EventGameEnd       = "GameEnd"
)

const (
	GroupPartyPrefix  = "party_"
	GroupServerPrefix = "server_"
	GroupGameServers  = "game_servers"
)

// PartyGroup returns the notification group of a party code.
func PartyGroup(partyCode string) string {
	return GroupPartyPrefix + partyCode
}

// ServerGroup returns the notification group of a game server.
func ServerGroup(serverID string) string {
	return GroupServerPrefix + serverID
}
