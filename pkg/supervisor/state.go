// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package supervisor

import "fmt"

// SessionState is the state of the matchmaking search owned by one connection.
//
//	Idle -> Searching -> Resolved | Cancelled | TimedOut | Disconnected
//
// A terminal session goes back to Searching when the connection starts a new search.
type SessionState int

const (
	StateIdle SessionState = iota
	StateSearching
	StateResolved
	StateCancelled
	StateTimedOut
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed_out"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}
