// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package supervisor

import (
	"context"
	"time"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// poll wakes on every tick and as soon as the ticket resolves. Each wake-up queries the status and relays it.
// Only ticks count against the attempt budget.
func (s *Supervisor) poll(ctx context.Context, scope *envelope.Scope, sess *session, run *searchRun) {
	defer s.loops.Done()
	defer scope.Finish()

	log := scope.Log.WithField("connectionID", sess.connectionID).WithField("ticketID", run.ticketID)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("search loop panicked")
			if s.finish(sess, run, StateCancelled) {
				s.matchmaker.Cancel(scope, run.ticketID)
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	resolved := s.matchmaker.Resolved(run.ticketID)
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-resolved:
			resolved = nil
		case <-ticker.C:
			attempts++
		}
		if ctx.Err() != nil {
			return
		}

		status := s.matchmaker.GetStatus(scope, run.ticketID)
		if status.Status == models.MatchmakingStatusError || status.Status == models.MatchmakingStatusCancelled {
			log.WithField("status", status.Status).Info("ticket ended outside the session")
			if s.finish(sess, run, StateCancelled) {
				s.matchmaker.Release(scope, run.ticketID)
			}
			return
		}

		// The search may have been cancelled while the status query was in flight.
		relayed, err := run.relay(func() error {
			return s.notifier.PushToConnection(scope, sess.connectionID, constants.EventMatchmakingUpdate, status)
		})
		if !relayed || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Info("connection gone, cancelling ticket")
			if s.finish(sess, run, StateDisconnected) {
				s.matchmaker.Cancel(scope, run.ticketID)
			}
			return
		}

		if status.Status == models.MatchmakingStatusFound {
			if s.finish(sess, run, StateResolved) {
				s.matchmaker.Release(scope, run.ticketID)
				log.WithField("serverID", status.FoundServer.ID).Info("search resolved")
			}
			return
		}

		if attempts >= s.maxAttempts {
			if s.finish(sess, run, StateTimedOut) {
				s.matchmaker.Cancel(scope, run.ticketID)
				if err := s.notifier.PushToConnection(scope, sess.connectionID, constants.EventMatchmakingTimeout, ticketPayload{TicketID: run.ticketID}); err != nil {
					log.WithError(err).Info("unable to deliver timeout")
				}
				log.WithField("attempts", attempts).Info("search timed out")
			}
			return
		}
	}
}
