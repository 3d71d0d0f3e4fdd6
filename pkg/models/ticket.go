// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"
	"strings"
	"time"

	validator "github.com/AccelByte/justice-input-validation-go"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
)

// TicketStatus is the lifecycle state of a ticket. A ticket leaves Searching exactly once.
type TicketStatus int

const (
	TicketStatusSearching TicketStatus = iota
	TicketStatusFound
	TicketStatusExpired
	TicketStatusCancelled
)

func (s TicketStatus) String() string {
	switch s {
	case TicketStatusSearching:
		return "searching"
	case TicketStatusFound:
		return "found"
	case TicketStatusExpired:
		return "expired"
	case TicketStatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("TicketStatus(%d)", int(s))
}

func (s TicketStatus) IsTerminal() bool {
	return s != TicketStatusSearching
}

// MatchmakingRequest is what a player asks for when joining the queue.
type MatchmakingRequest struct {
	GameMode        string `json:"gameMode"        valid:"stringlength(1|30)"`
	PreferredRegion Region `json:"preferredRegion"`
	PreferredMap    string `json:"preferredMap"    valid:"stringlength(1|50)"`
	MinPlayers      int    `json:"minPlayers"      valid:"range(1|64)"`
	MaxPlayers      int    `json:"maxPlayers"      valid:"range(1|64)"`
}

// SetDefaultValues fills the fields a client may omit.
func (r *MatchmakingRequest) SetDefaultValues() {
	r.GameMode = strings.TrimSpace(r.GameMode)
	r.PreferredMap = strings.TrimSpace(r.PreferredMap)
	if r.GameMode == "" {
		r.GameMode = constants.DefaultGameMode
	}
	if r.MinPlayers == 0 {
		r.MinPlayers = constants.DefaultMinPlayers
	}
	if r.MaxPlayers == 0 {
		r.MaxPlayers = constants.DefaultMaxPlayers
	}
}

// Validate checks the request and normalizes its region.
func (r *MatchmakingRequest) Validate() error {
	if _, err := validator.ValidateStruct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	if strings.Contains(r.GameMode, ":") {
		return fmt.Errorf("%w: game mode %q must not contain ':'", ErrInvalidRequest, r.GameMode)
	}

	if r.MinPlayers > r.MaxPlayers {
		return fmt.Errorf("%w: min players %d is greater than max players %d", ErrInvalidRequest, r.MinPlayers, r.MaxPlayers)
	}

	region, err := ParseRegion(string(r.PreferredRegion))
	if err != nil {
		return err
	}
	r.PreferredRegion = region

	return nil
}

// MatchmakingTicket is one player's outstanding search.
type MatchmakingTicket struct {
	TicketID        string       `json:"ticketId"`
	PlayerID        string       `json:"playerId"`
	GameMode        string       `json:"gameMode"`
	PreferredRegion Region       `json:"preferredRegion,omitempty"`
	PreferredMap    string       `json:"preferredMap,omitempty"`
	MinPlayers      int          `json:"minPlayers"`
	MaxPlayers      int          `json:"maxPlayers"`
	CreatedAt       time.Time    `json:"createdAt"`
	ResolvedAt      time.Time    `json:"resolvedAt,omitempty"`
	Status          TicketStatus `json:"status"`
	FoundServer     *ServerInfo  `json:"foundServer,omitempty"`
}

// PoolKey is fixed at creation since game mode and region never change.
func (t MatchmakingTicket) PoolKey() PoolKey {
	return NewPoolKey(t.GameMode, t.PreferredRegion)
}

// Copy returns a ticket that shares no memory with t.
func (t MatchmakingTicket) Copy() MatchmakingTicket {
	if t.FoundServer != nil {
		server := t.FoundServer.Copy()
		t.FoundServer = &server
	}
	return t
}

// Accepts reports whether the server satisfies the ticket's own preferences: a waiting server with a free slot
// and, when a map was requested, that map.
func (t MatchmakingTicket) Accepts(server ServerInfo) bool {
	if server.Status != ServerStatusWaiting {
		return false
	}
	if server.CurrentPlayers >= server.MaxPlayers {
		return false
	}
	if t.PreferredMap != "" && server.MapName != t.PreferredMap {
		return false
	}
	return true
}

// ServerQuery returns the directory query matching the ticket's pool.
func (t MatchmakingTicket) ServerQuery() ServerQuery {
	return ServerQuery{
		GameMode: t.GameMode,
		Region:   t.PreferredRegion,
		HideFull: true,
	}
}
