// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"

	validator "github.com/AccelByte/justice-input-validation-go"
	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-server-matchmaker/pkg/mathutil"
)

type ServerStatus string

const (
	ServerStatusWaiting    ServerStatus = "waiting"
	ServerStatusInProgress ServerStatus = "in_progress"
	ServerStatusEnded      ServerStatus = "ended"
)

func (s ServerStatus) IsValid() bool {
	switch s {
	case ServerStatusWaiting, ServerStatusInProgress, ServerStatusEnded:
		return true
	}
	return false
}

// ServerInfo is the directory view of a live game server.
type ServerInfo struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	IPAddress      string       `json:"ipAddress"`
	Port           int          `json:"port"`
	Region         Region       `json:"region"`
	MapName        string       `json:"mapName"`
	GameMode       string       `json:"gameMode"`
	CurrentPlayers int          `json:"currentPlayers"`
	MaxPlayers     int          `json:"maxPlayers"`
	CurrentWave    int          `json:"currentWave"`
	Difficulty     string       `json:"difficulty"`
	HasPassword    bool         `json:"hasPassword"`
	IsOfficial     bool         `json:"isOfficial"`
	Status         ServerStatus `json:"status"`
	PlayerNames    []string     `json:"playerNames"`
}

// FreeSlots returns how many players the server can still take, never negative.
func (s ServerInfo) FreeSlots() int {
	return mathutil.Clamp(s.MaxPlayers-s.CurrentPlayers, 0, s.MaxPlayers)
}

func (s ServerInfo) IsFull() bool {
	return s.FreeSlots() == 0
}

// Copy returns a deep copy, so callers never share the player name slice with the directory.
func (s ServerInfo) Copy() ServerInfo {
	copied, err := copystructure.Copy(s)
	if err != nil {
		logrus.Warn("failed copy serverInfo:", err)
		return s
	}
	copyServer, _ := copied.(ServerInfo)
	return copyServer
}

// ServerQuery filters a directory listing. Empty GameMode or Region match every server.
type ServerQuery struct {
	GameMode  string
	Region    Region
	HideEmpty bool
	HideFull  bool
}

// Matches reports whether a server passes the query filters. Ended servers never match.
func (q ServerQuery) Matches(s ServerInfo) bool {
	if s.Status == ServerStatusEnded {
		return false
	}
	if q.GameMode != "" && s.GameMode != q.GameMode {
		return false
	}
	if !q.Region.IsAny() && s.Region != q.Region {
		return false
	}
	if q.HideEmpty && s.CurrentPlayers <= 0 {
		return false
	}
	if q.HideFull && s.IsFull() {
		return false
	}
	return true
}

// ServerRegistration is sent by a dedicated server when it comes online.
type ServerRegistration struct {
	Name       string `json:"name"       valid:"stringlength(1|100),required"`
	IPAddress  string `json:"ipAddress"  valid:"host,required"`
	Port       int    `json:"port"       valid:"range(1|65535)"`
	Region     Region `json:"region"`
	MapName    string `json:"mapName"    valid:"stringlength(1|50),required"`
	GameMode   string `json:"gameMode"   valid:"stringlength(1|30)"`
	MaxPlayers int    `json:"maxPlayers" valid:"range(1|64)"`
	Difficulty string `json:"difficulty" valid:"stringlength(1|20)"`
	IsOfficial bool   `json:"isOfficial"`
}

func (r *ServerRegistration) SetDefaultValues() {
	if r.Port == 0 {
		r.Port = 27015
	}
	if r.GameMode == "" {
		r.GameMode = "survival"
	}
	if r.MaxPlayers == 0 {
		r.MaxPlayers = 8
	}
	if r.Difficulty == "" {
		r.Difficulty = "Normal"
	}
}

func (r *ServerRegistration) Validate() error {
	if _, err := validator.ValidateStruct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	region, err := ParseRegion(string(r.Region))
	if err != nil {
		return err
	}
	if region == "" {
		return fmt.Errorf("%w: server region is required", ErrInvalidRequest)
	}
	r.Region = region

	return nil
}

// ServerUpdate carries the fields a server may change after registration. Nil fields are left untouched.
type ServerUpdate struct {
	MapName        *string       `json:"mapName,omitempty"`
	GameMode       *string       `json:"gameMode,omitempty"`
	CurrentPlayers *int          `json:"currentPlayers,omitempty"`
	CurrentWave    *int          `json:"currentWave,omitempty"`
	Status         *ServerStatus `json:"status,omitempty"`
	PlayerNames    []string      `json:"players,omitempty"`
}

func (u ServerUpdate) Validate() error {
	if u.Status != nil && !u.Status.IsValid() {
		return fmt.Errorf("%w: unknown server status %q", ErrInvalidRequest, *u.Status)
	}
	if u.CurrentPlayers != nil && *u.CurrentPlayers < 0 {
		return fmt.Errorf("%w: current players cannot be negative", ErrInvalidRequest)
	}
	return nil
}

// Apply writes the non-nil fields of the update onto the server.
func (u ServerUpdate) Apply(s *ServerInfo) {
	if u.MapName != nil {
		s.MapName = *u.MapName
	}
	if u.GameMode != nil {
		s.GameMode = *u.GameMode
	}
	if u.CurrentPlayers != nil {
		s.CurrentPlayers = *u.CurrentPlayers
	}
	if u.CurrentWave != nil {
		s.CurrentWave = *u.CurrentWave
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.PlayerNames != nil {
		s.PlayerNames = append([]string(nil), u.PlayerNames...)
		s.CurrentPlayers = len(u.PlayerNames)
	}
}
