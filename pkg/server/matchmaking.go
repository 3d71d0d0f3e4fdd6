// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AccelByte/extend-server-matchmaker/pkg/auth"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// JoinQueue handles POST /api/matchmaking/join
func (s *Server) JoinQueue(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.JoinQueue")
	defer scope.Finish()

	identity, err := s.verifier.Authenticate(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var args matchmakingArgs
	if err := decodeBody(r, &args); err != nil {
		respondError(w, err)
		return
	}

	request := args.request()
	request.SetDefaultValues()
	if err := request.Validate(); err != nil {
		respondError(w, err)
		return
	}

	ticket := s.matchmaker.JoinQueue(scope.WithField(envelope.PlayerIDTag, identity.PlayerID), identity.PlayerID, request)
	respondJSON(w, http.StatusOK, ticket)
}

// GetStatus handles GET /api/matchmaking/status/{ticketId}
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.GetStatus")
	defer scope.Finish()

	identity, err := s.verifier.Authenticate(r)
	if err != nil {
		respondError(w, err)
		return
	}

	ticketID := chi.URLParam(r, "ticketId")
	if err := s.authorizeTicket(identity, ticketID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.matchmaker.GetStatus(scope.WithField(envelope.TicketIDTag, ticketID), ticketID))
}

// CancelTicket handles DELETE /api/matchmaking/{ticketId}
func (s *Server) CancelTicket(w http.ResponseWriter, r *http.Request) {
	scope := envelope.ChildScopeFromRemoteScope(r.Context(), "Server.CancelTicket")
	defer scope.Finish()

	identity, err := s.verifier.Authenticate(r)
	if err != nil {
		respondError(w, err)
		return
	}

	ticketID := chi.URLParam(r, "ticketId")
	if err := s.authorizeTicket(identity, ticketID); err != nil {
		respondError(w, err)
		return
	}
	s.matchmaker.Cancel(scope.WithField(envelope.TicketIDTag, ticketID), ticketID)
	w.WriteHeader(http.StatusNoContent)
}

// authorizeTicket rejects callers that do not own the ticket. Unknown tickets pass so that their status reads as
// not found and cancelling them stays a no-op.
func (s *Server) authorizeTicket(identity auth.Identity, ticketID string) error {
	owner, ok := s.matchmaker.TicketOwner(ticketID)
	if ok && owner != identity.PlayerID {
		return fmt.Errorf("%w: %s", models.ErrTicketNotOwned, ticketID)
	}
	return nil
}

// GetPools handles GET /api/matchmaking/pools
func (s *Server) GetPools(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.matchmaker.PoolStats())
}
