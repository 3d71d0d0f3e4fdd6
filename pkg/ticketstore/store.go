// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package ticketstore holds the authoritative state of every matchmaking ticket and owns its state machine.
package ticketstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

type record struct {
	ticket   models.MatchmakingTicket
	resolved chan struct{}
}

// Store maps ticket ids to tickets. Every method takes the store lock for its whole duration and
// never calls out while holding it. Returned tickets are copies.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*record
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used to stamp creation and resolution times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		tickets: make(map[string]*record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create builds a searching ticket from an already defaulted request and stores it.
func (s *Store) Create(playerID string, request models.MatchmakingRequest) models.MatchmakingTicket {
	ticket := models.MatchmakingTicket{
		TicketID:        utils.GenerateUUID(),
		PlayerID:        playerID,
		GameMode:        request.GameMode,
		PreferredRegion: request.PreferredRegion,
		PreferredMap:    request.PreferredMap,
		MinPlayers:      request.MinPlayers,
		MaxPlayers:      request.MaxPlayers,
		Status:          models.TicketStatusSearching,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket.CreatedAt = s.now()
	s.tickets[ticket.TicketID] = &record{
		ticket:   ticket,
		resolved: make(chan struct{}),
	}

	return ticket
}

func (s *Store) Get(ticketID string) (models.MatchmakingTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tickets[ticketID]
	if !ok {
		return models.MatchmakingTicket{}, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}

	return rec.ticket.Copy(), nil
}

// Remove deletes the ticket and wakes its watchers. Removing an unknown ticket is a no-op.
func (s *Store) Remove(ticketID string) (models.MatchmakingTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tickets[ticketID]
	if !ok {
		return models.MatchmakingTicket{}, false
	}

	delete(s.tickets, ticketID)
	if rec.ticket.Status == models.TicketStatusSearching {
		close(rec.resolved)
	}

	return rec.ticket, true
}

// SetFound binds the server and moves the ticket to found. A ticket that already left the searching state is left
// untouched and models.ErrAlreadyResolved is returned so racing resolvers can tell they lost.
func (s *Store) SetFound(ticketID string, server models.ServerInfo) (models.MatchmakingTicket, error) {
	bound := server.Copy()
	return s.transition(ticketID, models.TicketStatusFound, &bound)
}

func (s *Store) SetExpired(ticketID string) (models.MatchmakingTicket, error) {
	return s.transition(ticketID, models.TicketStatusExpired, nil)
}

func (s *Store) SetCancelled(ticketID string) (models.MatchmakingTicket, error) {
	return s.transition(ticketID, models.TicketStatusCancelled, nil)
}

func (s *Store) transition(ticketID string, to models.TicketStatus, server *models.ServerInfo) (models.MatchmakingTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tickets[ticketID]
	if !ok {
		return models.MatchmakingTicket{}, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}
	if rec.ticket.Status != models.TicketStatusSearching {
		return rec.ticket.Copy(), fmt.Errorf("%w: %s is %s", models.ErrAlreadyResolved, ticketID, rec.ticket.Status)
	}

	rec.ticket.Status = to
	rec.ticket.FoundServer = server
	rec.ticket.ResolvedAt = s.now()
	close(rec.resolved)

	return rec.ticket.Copy(), nil
}

// Resolved returns a channel that is closed once the ticket leaves the searching state or is removed.
// Unknown tickets get an already closed channel.
func (s *Store) Resolved(ticketID string) <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tickets[ticketID]
	if !ok {
		return closedChannel
	}
	return rec.resolved
}

// PurgeResolved removes terminal tickets resolved before the cutoff and returns them.
func (s *Store) PurgeResolved(before time.Time) []models.MatchmakingTicket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged []models.MatchmakingTicket
	for id, rec := range s.tickets {
		if rec.ticket.Status.IsTerminal() && rec.ticket.ResolvedAt.Before(before) {
			delete(s.tickets, id)
			purged = append(purged, rec.ticket)
		}
	}
	return purged
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

var closedChannel = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
