// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package supervisor runs one polling loop per searching connection. The loop relays ticket status to the
// connection until the ticket is found, the search is cancelled, the connection goes away or the attempt
// budget runs out.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

type session struct {
	connectionID string
	playerID     string
	state        SessionState
	run          *searchRun
}

type searchRun struct {
	ticketID string
	cancel   context.CancelFunc

	pushMu  sync.Mutex
	stopped bool
}

// stop cancels the run and waits for an update being relayed. Nothing is relayed afterwards.
func (r *searchRun) stop() {
	r.cancel()
	r.pushMu.Lock()
	r.stopped = true
	r.pushMu.Unlock()
}

// relay calls push unless the run was stopped.
func (r *searchRun) relay(push func() error) (bool, error) {
	r.pushMu.Lock()
	defer r.pushMu.Unlock()

	if r.stopped {
		return false, nil
	}
	return true, push()
}

// Supervisor owns the sessions map. Its lock is never held while calling the matchmaker or the notifier.
type Supervisor struct {
	matchmaker   matchmaker.Matchmaker
	notifier     matchmaker.Notifier
	metrics      metrics.MatchmakingMetrics
	pollInterval time.Duration
	maxAttempts  int

	mu       sync.Mutex
	sessions map[string]*session
	active   int

	ctx   context.Context
	stop  context.CancelFunc
	loops sync.WaitGroup
}

func New(mm matchmaker.Matchmaker, notifier matchmaker.Notifier, metrics metrics.MatchmakingMetrics, pollInterval time.Duration, maxAttempts int) *Supervisor {
	ctx, stop := context.WithCancel(context.Background())
	return &Supervisor{
		matchmaker:   mm,
		notifier:     notifier,
		metrics:      metrics,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		sessions:     make(map[string]*session),
		ctx:          ctx,
		stop:         stop,
	}
}

// Open registers an idle session for the connection. Reopening a connection stops its running search.
func (s *Supervisor) Open(scope *envelope.Scope, connectionID string, playerID string) {
	s.mu.Lock()
	previous := s.sessions[connectionID]
	s.sessions[connectionID] = &session{
		connectionID: connectionID,
		playerID:     playerID,
		state:        StateIdle,
	}
	var run *searchRun
	if previous != nil {
		run = s.detachRunLocked(previous, StateCancelled)
	}
	s.mu.Unlock()

	s.abandon(scope, run)
}

// StartSearch queues a ticket for the connection's player and starts polling it. A search already running on the
// connection is cancelled first.
func (s *Supervisor) StartSearch(rootScope *envelope.Scope, connectionID string, request models.MatchmakingRequest) (models.MatchmakingTicket, error) {
	scope := rootScope.NewChildScope("Supervisor.StartSearch")
	defer scope.Finish()

	s.mu.Lock()
	sess, ok := s.sessions[connectionID]
	if !ok {
		s.mu.Unlock()
		return models.MatchmakingTicket{}, fmt.Errorf("%w: %s", models.ErrConnectionGone, connectionID)
	}
	previous := s.detachRunLocked(sess, StateCancelled)
	playerID := sess.playerID
	s.mu.Unlock()

	s.abandon(scope, previous)

	ticket := s.matchmaker.JoinQueue(scope, playerID, request)

	runCtx, cancel := context.WithCancel(s.ctx)
	run := &searchRun{
		ticketID: ticket.TicketID,
		cancel:   cancel,
	}

	s.mu.Lock()
	if s.sessions[connectionID] != sess {
		s.mu.Unlock()
		cancel()
		s.matchmaker.Cancel(scope, ticket.TicketID)
		return models.MatchmakingTicket{}, fmt.Errorf("%w: %s", models.ErrConnectionGone, connectionID)
	}
	sess.run = run
	sess.state = StateSearching
	s.active++
	s.metrics.SetActiveSearchSessions(s.active)
	s.mu.Unlock()

	log := scope.Log.WithField("connectionID", connectionID).WithField("ticketID", ticket.TicketID)

	err := s.notifier.PushToConnection(scope, connectionID, constants.EventMatchmakingStarted, ticketPayload{TicketID: ticket.TicketID})
	if err != nil {
		log.WithError(err).Info("connection gone before search started")
		if s.finish(sess, run, StateDisconnected) {
			s.matchmaker.Cancel(scope, ticket.TicketID)
		}
		return models.MatchmakingTicket{}, err
	}

	loopScope := scope.Detached(runCtx, "Supervisor.poll")
	s.loops.Add(1)
	go s.poll(runCtx, loopScope, sess, run)

	log.Info("search started")

	return ticket, nil
}

// CancelSearch stops the connection's running search and cancels its ticket. It returns the cancelled ticket id.
func (s *Supervisor) CancelSearch(scope *envelope.Scope, connectionID string) (string, bool) {
	s.mu.Lock()
	var run *searchRun
	if sess, ok := s.sessions[connectionID]; ok {
		run = s.detachRunLocked(sess, StateCancelled)
	}
	s.mu.Unlock()

	if run == nil {
		return "", false
	}
	s.abandon(scope, run)
	return run.ticketID, true
}

// Close forgets the connection. A running search ends as disconnected and its ticket is cancelled.
func (s *Supervisor) Close(scope *envelope.Scope, connectionID string) {
	s.mu.Lock()
	var run *searchRun
	if sess, ok := s.sessions[connectionID]; ok {
		delete(s.sessions, connectionID)
		run = s.detachRunLocked(sess, StateDisconnected)
	}
	s.mu.Unlock()

	s.abandon(scope, run)
}

func (s *Supervisor) State(connectionID string) (SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[connectionID]
	if !ok {
		return StateIdle, false
	}
	return sess.state, true
}

// TicketID returns the ticket of the connection's running search.
func (s *Supervisor) TicketID(connectionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[connectionID]
	if !ok || sess.run == nil {
		return "", false
	}
	return sess.run.ticketID, true
}

// Shutdown stops every polling loop and waits for them to return. Tickets are left to the sweep.
func (s *Supervisor) Shutdown() {
	s.stop()
	s.loops.Wait()
}

// detachRunLocked ends the session's running search, if any, with the given state and returns it.
func (s *Supervisor) detachRunLocked(sess *session, state SessionState) *searchRun {
	run := sess.run
	if run == nil {
		return nil
	}
	sess.run = nil
	sess.state = state
	s.active--
	s.metrics.SetActiveSearchSessions(s.active)
	return run
}

// finish ends run with state unless someone else already ended it.
func (s *Supervisor) finish(sess *session, run *searchRun, state SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.run != run {
		return false
	}
	s.detachRunLocked(sess, state)
	run.cancel()
	return true
}

func (s *Supervisor) abandon(scope *envelope.Scope, run *searchRun) {
	if run == nil {
		return
	}
	run.stop()
	s.matchmaker.Cancel(scope, run.ticketID)
}

type ticketPayload struct {
	TicketID string `json:"ticketId"`
}
