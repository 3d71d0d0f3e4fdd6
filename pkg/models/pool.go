// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"gopkg.in/typ.v4/sync2"
)

// Pool reusable objects to reduce garbage collector
type Pool struct {
	Tickets *sync2.Pool[[]MatchmakingTicket]
}

func NewPool() *Pool {
	return &Pool{
		Tickets: &sync2.Pool[[]MatchmakingTicket]{
			New: func() []MatchmakingTicket {
				return make([]MatchmakingTicket, 0, 64)
			},
		},
	}
}

// GetTickets returns an empty ticket buffer. Hand it back with PutTickets once nothing references it.
func (p *Pool) GetTickets() []MatchmakingTicket {
	return p.Tickets.Get()[:0]
}

func (p *Pool) PutTickets(buf []MatchmakingTicket) {
	clear(buf)
	p.Tickets.Put(buf[:0])
}
