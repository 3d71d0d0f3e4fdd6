// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package directory provides the server directory backends: an in-memory directory fed by game server heartbeats
// and a redis-backed directory shared with the fleet that publishes into it.
package directory

import (
	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// Registrar is implemented by directories that game servers register into directly.
type Registrar interface {
	matchmaker.ServerDirectory

	Register(scope *envelope.Scope, registration models.ServerRegistration) (models.ServerInfo, string, error)
	Update(scope *envelope.Scope, serverID string, token string, update models.ServerUpdate) (models.ServerInfo, error)
	Heartbeat(scope *envelope.Scope, serverID string, token string) error
	Deregister(scope *envelope.Scope, serverID string, token string) error
	GetServer(scope *envelope.Scope, serverID string) (models.ServerInfo, error)
	ValidateToken(serverID string, token string) error
}

// sortServers orders official servers first, then fuller servers, then by id.
func sortServers(servers []models.ServerInfo) []models.ServerInfo {
	return pie.SortUsing(servers, func(a, b models.ServerInfo) bool {
		if a.IsOfficial != b.IsOfficial {
			return a.IsOfficial
		}
		if a.CurrentPlayers != b.CurrentPlayers {
			return a.CurrentPlayers > b.CurrentPlayers
		}
		return a.ID < b.ID
	})
}
