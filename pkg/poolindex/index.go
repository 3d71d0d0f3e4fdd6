// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package poolindex groups searching tickets by pool key in arrival order.
package poolindex

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// TicketGetter resolves a ticket id to its current state.
type TicketGetter interface {
	Get(ticketID string) (models.MatchmakingTicket, error)
}

type entry struct {
	ticketID  string
	createdAt time.Time
}

// Index only stores ticket ids; ticket state is always read back from the TicketGetter after the index lock is
// released, so the index and the store are never locked together.
type Index struct {
	mu      sync.RWMutex
	pools   map[models.PoolKey][]entry
	tickets TicketGetter
}

func New(tickets TicketGetter) *Index {
	return &Index{
		pools:   make(map[models.PoolKey][]entry),
		tickets: tickets,
	}
}

// AddToPool inserts the ticket keeping the pool ordered by creation time. Re-adding a ticket is a no-op.
func (idx *Index) AddToPool(key models.PoolKey, ticket models.MatchmakingTicket) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	pool := idx.pools[key]
	for _, e := range pool {
		if e.ticketID == ticket.TicketID {
			return
		}
	}

	at := sort.Search(len(pool), func(i int) bool {
		return pool[i].createdAt.After(ticket.CreatedAt)
	})
	pool = append(pool, entry{})
	copy(pool[at+1:], pool[at:])
	pool[at] = entry{ticketID: ticket.TicketID, createdAt: ticket.CreatedAt}
	idx.pools[key] = pool
}

// RemoveFromPool drops the ticket from the pool; empty pools are deleted. It reports whether this call deleted the pool.
func (idx *Index) RemoveFromPool(key models.PoolKey, ticketID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.removeLocked(key, ticketID)
}

func (idx *Index) removeLocked(key models.PoolKey, ticketID string) bool {
	pool, ok := idx.pools[key]
	if !ok {
		return false
	}
	for i, e := range pool {
		if e.ticketID == ticketID {
			pool = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	if len(pool) == 0 {
		delete(idx.pools, key)
		return true
	}
	idx.pools[key] = pool
	return false
}

// Keys returns the non-empty pool keys in lexical order.
func (idx *Index) Keys() []models.PoolKey {
	idx.mu.RLock()
	keys := pie.Keys(idx.pools)
	idx.mu.RUnlock()

	return pie.SortUsing(keys, func(a, b models.PoolKey) bool {
		return a < b
	})
}

// SnapshotSearching returns copies of the pool's searching tickets ordered by arrival.
func (idx *Index) SnapshotSearching(key models.PoolKey) []models.MatchmakingTicket {
	return idx.AppendSearching(nil, key)
}

// AppendSearching appends the pool's searching tickets to dst in arrival order. Entries whose ticket is gone from the
// store or no longer searching are pruned from the pool.
func (idx *Index) AppendSearching(dst []models.MatchmakingTicket, key models.PoolKey) []models.MatchmakingTicket {
	idx.mu.RLock()
	ids := pie.Map(idx.pools[key], func(e entry) string {
		return e.ticketID
	})
	idx.mu.RUnlock()

	var stale []string
	for _, id := range ids {
		ticket, err := idx.tickets.Get(id)
		if errors.Is(err, models.ErrTicketNotFound) || (err == nil && ticket.Status != models.TicketStatusSearching) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			continue
		}
		dst = append(dst, ticket)
	}

	if len(stale) > 0 {
		idx.mu.Lock()
		for _, id := range stale {
			idx.removeLocked(key, id)
		}
		idx.mu.Unlock()
	}

	return dst
}

// QueueSize counts the pool's searching tickets.
func (idx *Index) QueueSize(key models.PoolKey) int {
	return len(idx.SnapshotSearching(key))
}

// Len returns the number of indexed entries across all pools, including entries not yet pruned.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := 0
	for _, pool := range idx.pools {
		total += len(pool)
	}
	return total
}
