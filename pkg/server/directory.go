// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/swag"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// RegisterServerResponse carries the credentials a game server uses for every later call.
type RegisterServerResponse struct {
	Server models.ServerInfo `json:"server"`
	Token  string            `json:"token"`
}

// ListServers handles GET /api/servers
func (s *Server) ListServers(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.ListServers")
	defer scope.Finish()

	query, err := serverQueryFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	servers, err := s.directory.ListServers(scope, query)
	if err != nil {
		respondError(w, err)
		return
	}
	if servers == nil {
		servers = []models.ServerInfo{}
	}
	respondJSON(w, http.StatusOK, servers)
}

// GetServer handles GET /api/servers/{serverId}
func (s *Server) GetServer(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.GetServer")
	defer scope.Finish()

	server, err := s.directory.GetServer(scope, chi.URLParam(r, "serverId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, server)
}

// RegisterServer handles POST /api/servers
func (s *Server) RegisterServer(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.RegisterServer")
	defer scope.Finish()

	var registration models.ServerRegistration
	if err := decodeBody(r, &registration); err != nil {
		respondError(w, err)
		return
	}

	server, token, err := s.directory.Register(scope, registration)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, RegisterServerResponse{Server: server, Token: token})
}

// UpdateServer handles PUT /api/servers/{serverId}
func (s *Server) UpdateServer(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.UpdateServer")
	defer scope.Finish()

	var update models.ServerUpdate
	if err := decodeBody(r, &update); err != nil {
		respondError(w, err)
		return
	}

	server, err := s.directory.Update(scope, chi.URLParam(r, "serverId"), r.Header.Get(constants.ServerTokenHeader), update)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, server)
}

// Heartbeat handles POST /api/servers/{serverId}/heartbeat
func (s *Server) Heartbeat(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.Heartbeat")
	defer scope.Finish()

	if err := s.directory.Heartbeat(scope, chi.URLParam(r, "serverId"), r.Header.Get(constants.ServerTokenHeader)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeregisterServer handles DELETE /api/servers/{serverId}
func (s *Server) DeregisterServer(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.DeregisterServer")
	defer scope.Finish()

	serverID := chi.URLParam(r, "serverId")
	if err := s.directory.Deregister(scope, serverID, r.Header.Get(constants.ServerTokenHeader)); err != nil {
		respondError(w, err)
		return
	}
	s.gameHub.DropServer(scope, serverID)
	w.WriteHeader(http.StatusNoContent)
}

func serverQueryFromRequest(r *http.Request) (models.ServerQuery, error) {
	values := r.URL.Query()

	region, err := models.ParseRegion(values.Get("region"))
	if err != nil {
		return models.ServerQuery{}, err
	}

	query := models.ServerQuery{
		GameMode: values.Get("gameMode"),
		Region:   region,
	}
	for name, target := range map[string]*bool{"hideEmpty": &query.HideEmpty, "hideFull": &query.HideFull} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := swag.ConvertBool(raw)
		if err != nil {
			return models.ServerQuery{}, fmt.Errorf("%w: %s must be a boolean", models.ErrInvalidRequest, name)
		}
		*target = parsed
	}
	return query, nil
}
