// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package registry records which live connection belongs to which player and which game server.
// The player map and the server map have independent locks and no operation touches both.
package registry

import (
	"sort"
)

type Registry struct {
	players *binding
	servers *binding
}

func New() *Registry {
	return &Registry{
		players: newBinding(),
		servers: newBinding(),
	}
}

// BindPlayer records the player's connection. When the player was bound to another connection, that connection
// is evicted and returned so the caller can stop its work.
func (r *Registry) BindPlayer(connectionID string, playerID string) (evicted string, ok bool) {
	return r.players.bind(connectionID, playerID)
}

func (r *Registry) UnbindPlayer(connectionID string) (playerID string, ok bool) {
	return r.players.unbind(connectionID)
}

func (r *Registry) LookupConnection(playerID string) (string, bool) {
	return r.players.lookupConnection(playerID)
}

func (r *Registry) LookupPlayer(connectionID string) (string, bool) {
	return r.players.lookupIdentity(connectionID)
}

func (r *Registry) BindServer(connectionID string, serverID string) (evicted string, ok bool) {
	return r.servers.bind(connectionID, serverID)
}

func (r *Registry) UnbindServer(connectionID string) (serverID string, ok bool) {
	return r.servers.unbind(connectionID)
}

// UnregisterServer drops the server regardless of which connection registered it.
func (r *Registry) UnregisterServer(serverID string) (connectionID string, ok bool) {
	return r.servers.unbindIdentity(serverID)
}

func (r *Registry) LookupServerConnection(serverID string) (string, bool) {
	return r.servers.lookupConnection(serverID)
}

func (r *Registry) LookupServer(connectionID string) (string, bool) {
	return r.servers.lookupIdentity(connectionID)
}

// ServerIDs returns the registered server ids in lexical order.
func (r *Registry) ServerIDs() []string {
	ids := r.servers.identities()
	sort.Strings(ids)
	return ids
}
