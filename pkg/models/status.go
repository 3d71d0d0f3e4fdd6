// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

const (
	MatchmakingStatusSearching = "searching"
	MatchmakingStatusFound     = "found"
	MatchmakingStatusCancelled = "cancelled"
	MatchmakingStatusError     = "error"
)

// MatchmakingStatus is the read model returned to callers polling a ticket.
type MatchmakingStatus struct {
	Status               string      `json:"status"`
	PlayersInQueue       int         `json:"playersInQueue"`
	EstimatedWaitSeconds int         `json:"estimatedWaitSeconds"`
	FoundServer          *ServerInfo `json:"foundServer,omitempty"`
	Error                string      `json:"error,omitempty"`
}

func SearchingStatus(playersInQueue, estimatedWaitSeconds int) MatchmakingStatus {
	return MatchmakingStatus{
		Status:               MatchmakingStatusSearching,
		PlayersInQueue:       playersInQueue,
		EstimatedWaitSeconds: estimatedWaitSeconds,
	}
}

func FoundStatus(server ServerInfo) MatchmakingStatus {
	copied := server.Copy()
	return MatchmakingStatus{
		Status:      MatchmakingStatusFound,
		FoundServer: &copied,
	}
}

func CancelledStatus() MatchmakingStatus {
	return MatchmakingStatus{Status: MatchmakingStatusCancelled}
}

func ErrorStatus(message string) MatchmakingStatus {
	return MatchmakingStatus{Status: MatchmakingStatusError, Error: message}
}

// IsTerminal reports whether a poller should stop after this status.
func (s MatchmakingStatus) IsTerminal() bool {
	return s.Status != MatchmakingStatusSearching
}
