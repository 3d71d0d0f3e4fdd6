// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package defaultmatchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-server-matchmaker/pkg/config"
	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/testsetup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMatchMaker(directory *testsetup.StubServerDirectory, clock *fakeClock) *MatchMaker {
	return NewMatchMaker(config.Default(), directory, testsetup.NewMetrics(), WithClock(clock.Now))
}

func request(gameMode string, region models.Region, preferredMap string) models.MatchmakingRequest {
	r := models.MatchmakingRequest{GameMode: gameMode, PreferredRegion: region, PreferredMap: preferredMap}
	r.SetDefaultValues()
	return r
}

func TestEstimateWaitSeconds(t *testing.T) {
	assert.Equal(t, 30, EstimateWaitSeconds(0))
	assert.Equal(t, 27, EstimateWaitSeconds(1))
	assert.Equal(t, 15, EstimateWaitSeconds(5))
	assert.Equal(t, 5, EstimateWaitSeconds(10))
	assert.Equal(t, 5, EstimateWaitSeconds(100))

	previous := EstimateWaitSeconds(0)
	for n := 1; n < 50; n++ {
		current := EstimateWaitSeconds(n)
		assert.LessOrEqual(t, current, previous)
		previous = current
	}
}

func TestGetStatus_FoundOnFirstPoll(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "eu", 1, 8))
	mm := newTestMatchMaker(directory, newFakeClock())

	ticket := mm.JoinQueue(g.TestScope, "player-1", request("survival", "", ""))
	status := mm.GetStatus(g.TestScope, ticket.TicketID)

	g.Expect(status.Status).To(Equal(models.MatchmakingStatusFound))
	g.Expect(status.FoundServer).NotTo(BeNil())
	g.Expect(status.FoundServer.ID).To(Equal("s1"))

	// ticket without a region must not filter the directory on region
	g.Expect(directory.Queries()).To(ConsistOf(models.ServerQuery{GameMode: "survival", HideFull: true}))

	// a resolved ticket answers without asking the directory again
	again := mm.GetStatus(g.TestScope, ticket.TicketID)
	g.Expect(again.Status).To(Equal(models.MatchmakingStatusFound))
	g.Expect(directory.Queries()).To(HaveLen(1))
}

func TestGetStatus_SearchingWithEstimate(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "eu", 1, 8))
	mm := newTestMatchMaker(directory, newFakeClock())

	ticket := mm.JoinQueue(g.TestScope, "player-1", request("horde", "", ""))
	status := mm.GetStatus(g.TestScope, ticket.TicketID)

	g.Expect(status).To(Equal(models.MatchmakingStatus{
		Status:               models.MatchmakingStatusSearching,
		PlayersInQueue:       1,
		EstimatedWaitSeconds: 27,
	}))
}

func TestGetStatus_SelectsFirstEligibleInDirectoryOrder(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()

	started := testsetup.WaitingServer("started", "survival", "eu", 1, 8)
	started.Status = models.ServerStatusInProgress
	full := testsetup.WaitingServer("full", "survival", "eu", 8, 8)
	otherMap := testsetup.WaitingServer("farm", "survival", "eu", 0, 8)
	otherMap.MapName = "farm"
	first := testsetup.WaitingServer("first", "survival", "eu", 3, 8)
	second := testsetup.WaitingServer("second", "survival", "eu", 0, 8)

	directory := testsetup.NewStubServerDirectory(started, full, otherMap, first, second)
	mm := newTestMatchMaker(directory, newFakeClock())

	ticket := mm.JoinQueue(scope, "player-1", request("survival", "eu", "mall"))
	status := mm.GetStatus(scope, ticket.TicketID)

	require.Equal(t, models.MatchmakingStatusFound, status.Status)
	assert.Equal(t, "first", status.FoundServer.ID)
	assert.Equal(t, models.Region("eu"), directory.Queries()[0].Region)
}

func TestGetStatus_UnknownTicket(t *testing.T) {
	t.Parallel()
	mm := newTestMatchMaker(testsetup.NewStubServerDirectory(), newFakeClock())

	status := mm.GetStatus(testsetup.NewTestScope(), "missing")

	assert.Equal(t, models.MatchmakingStatusError, status.Status)
	assert.Equal(t, models.ErrTicketNotFound.Error(), status.Error)
}

func TestGetStatus_DirectoryFailureKeepsSearching(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "", 0, 8))
	directory.SetErr(errors.New("connection refused"))
	mm := newTestMatchMaker(directory, newFakeClock())

	ticket := mm.JoinQueue(g.TestScope, "player-1", request("survival", "", ""))
	g.Expect(mm.GetStatus(g.TestScope, ticket.TicketID).Status).To(Equal(models.MatchmakingStatusSearching))

	directory.SetErr(nil)
	g.Expect(mm.GetStatus(g.TestScope, ticket.TicketID).Status).To(Equal(models.MatchmakingStatusFound))
}

func TestCancel_IsIdempotent(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	mm := newTestMatchMaker(testsetup.NewStubServerDirectory(), newFakeClock())

	ticket := mm.JoinQueue(g.TestScope, "player-1", request("survival", "", ""))
	other := mm.JoinQueue(g.TestScope, "player-2", request("survival", "", ""))

	mm.Cancel(g.TestScope, ticket.TicketID)
	first := mm.GetStatus(g.TestScope, ticket.TicketID)
	mm.Cancel(g.TestScope, ticket.TicketID)
	second := mm.GetStatus(g.TestScope, ticket.TicketID)

	g.Expect(first).To(Equal(second))
	g.Expect(first.Status).To(Equal(models.MatchmakingStatusError))
	g.Expect(mm.index.SnapshotSearching(other.PoolKey())).To(HaveLen(1))
	g.Expect(mm.GetStatus(g.TestScope, other.TicketID).PlayersInQueue).To(Equal(1))

	select {
	case <-mm.Resolved(ticket.TicketID):
	default:
		t.Fatal("cancelled ticket must report resolved")
	}
}

func TestSweep_FIFOForSingleSlot(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := newFakeClock()
	directory := testsetup.NewStubServerDirectory()
	mm := newTestMatchMaker(directory, clock)

	first := mm.JoinQueue(g.TestScope, "player-1", request("survival", "", ""))
	clock.Advance(time.Second)
	second := mm.JoinQueue(g.TestScope, "player-2", request("survival", "", ""))

	directory.SetServers(testsetup.WaitingServer("s1", "survival", "eu", 7, 8))
	result := mm.Sweep(g.TestScope)

	g.Expect(result.Matched).To(Equal(1))
	firstTicket, err := mm.store.Get(first.TicketID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(firstTicket.Status).To(Equal(models.TicketStatusFound))

	secondTicket, err := mm.store.Get(second.TicketID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(secondTicket.Status).To(Equal(models.TicketStatusSearching))
}

func TestSweep_RespectsCapacityAndDirectoryOrder(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := newFakeClock()
	directory := testsetup.NewStubServerDirectory()
	mm := newTestMatchMaker(directory, clock)

	var tickets []models.MatchmakingTicket
	for i := 0; i < 6; i++ {
		tickets = append(tickets, mm.JoinQueue(g.TestScope, "player", request("survival", "", "")))
		clock.Advance(time.Second)
	}

	directory.SetServers(
		testsetup.WaitingServer("a", "survival", "eu", 6, 8),
		testsetup.WaitingServer("b", "survival", "us", 7, 8),
		testsetup.WaitingServer("c", "survival", "us", 0, 2),
	)
	result := mm.Sweep(g.TestScope)
	g.Expect(result.Matched).To(Equal(5))

	assigned := map[string]int{}
	var order []string
	for _, ticket := range tickets {
		stored, err := mm.store.Get(ticket.TicketID)
		g.Expect(err).NotTo(HaveOccurred())
		if stored.FoundServer == nil {
			order = append(order, "-")
			continue
		}
		assigned[stored.FoundServer.ID]++
		order = append(order, stored.FoundServer.ID)
	}

	if !assert.Equal(t, []string{"a", "a", "b", "c", "c", "-"}, order, "unexpected assignment order") {
		fmt.Println("result:")
		spew.Dump(result)
	}
	g.Expect(assigned).To(Equal(map[string]int{"a": 2, "b": 1, "c": 2}))
}

func TestSweep_HonoursPreferredMap(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()
	clock := newFakeClock()
	directory := testsetup.NewStubServerDirectory()
	mm := newTestMatchMaker(directory, clock)

	wantsFarm := mm.JoinQueue(scope, "player-1", request("survival", "", "farm"))
	clock.Advance(time.Second)
	anyMap := mm.JoinQueue(scope, "player-2", request("survival", "", ""))

	directory.SetServers(testsetup.WaitingServer("mall", "survival", "eu", 7, 8))
	mm.Sweep(scope)

	stored, err := mm.store.Get(wantsFarm.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusSearching, stored.Status)

	stored, err = mm.store.Get(anyMap.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusFound, stored.Status)
}

func TestSweep_ExpiresOldTickets(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := newFakeClock()
	mm := newTestMatchMaker(testsetup.NewStubServerDirectory(), clock)

	ticket := mm.JoinQueue(g.TestScope, "player-1", request("horde", "", ""))
	for elapsed := time.Duration(0); elapsed < 5*time.Minute; elapsed += 3 * time.Second {
		clock.Advance(3 * time.Second)
		mm.Sweep(g.TestScope)
	}

	status := mm.GetStatus(g.TestScope, ticket.TicketID)
	g.Expect(status.Status).To(Equal(models.MatchmakingStatusError))
	g.Expect(mm.index.Keys()).To(BeEmpty())
	g.Expect(mm.store.Len()).To(Equal(0))
}

func TestSweep_DirectoryFailureLeavesTicketsSearching(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "", 0, 8))
	directory.SetErr(errors.New("timeout"))
	mm := newTestMatchMaker(directory, newFakeClock())

	ticket := mm.JoinQueue(scope, "player-1", request("survival", "", ""))
	result := mm.Sweep(scope)

	assert.Equal(t, 1, result.DirectoryErrors)
	stored, err := mm.store.Get(ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusSearching, stored.Status)
}

func TestSweep_PurgesFoundTicketsAfterRetention(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()
	clock := newFakeClock()
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "", 0, 8))
	mm := newTestMatchMaker(directory, clock)

	ticket := mm.JoinQueue(scope, "player-1", request("survival", "", ""))
	mm.Sweep(scope)
	assert.Equal(t, models.MatchmakingStatusFound, mm.GetStatus(scope, ticket.TicketID).Status)

	clock.Advance(2 * time.Minute)
	result := mm.Sweep(scope)

	assert.Equal(t, 1, result.Purged)
	assert.Equal(t, models.MatchmakingStatusError, mm.GetStatus(scope, ticket.TicketID).Status)
}

func poolQueueSize(t *testing.T, registry *prometheus.Registry, poolKey string) (float64, bool) {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "mm_pool_queue_size" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "pool_key" && label.GetValue() == poolKey {
					return metric.GetGauge().GetValue(), true
				}
			}
		}
	}
	return 0, false
}

func TestSweep_PoolQueueSizeReportsAfterAssignment(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()
	clock := newFakeClock()
	registry := prometheus.NewRegistry()
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "", 6, 8))
	mm := NewMatchMaker(config.Default(), directory, metrics.NewMetrics(registry), WithClock(clock.Now))

	var last models.MatchmakingTicket
	for i := 0; i < 3; i++ {
		last = mm.JoinQueue(scope, fmt.Sprintf("player-%d", i), request("survival", "", ""))
		clock.Advance(time.Second)
	}
	poolKey := last.PoolKey().String()

	result := mm.Sweep(scope)
	require.Equal(t, 2, result.Matched)

	size, ok := poolQueueSize(t, registry, poolKey)
	require.True(t, ok)
	assert.Equal(t, 1.0, size)

	mm.Cancel(scope, last.TicketID)
	size, _ = poolQueueSize(t, registry, poolKey)
	assert.Equal(t, 0.0, size)

	mm.Sweep(scope)
	size, _ = poolQueueSize(t, registry, poolKey)
	assert.Equal(t, 0.0, size)
}

func TestSweepAndOnDemand_ConcurrentResolveOnce(t *testing.T) {
	t.Parallel()
	scope := testsetup.NewTestScope()
	directory := testsetup.NewStubServerDirectory(testsetup.WaitingServer("s1", "survival", "", 0, 64))
	mm := newTestMatchMaker(directory, newFakeClock())

	var tickets []models.MatchmakingTicket
	for i := 0; i < 40; i++ {
		tickets = append(tickets, mm.JoinQueue(scope, "player", request("survival", "", "")))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mm.Sweep(testsetup.NewTestScope())
	}()
	for _, ticket := range tickets {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			mm.GetStatus(testsetup.NewTestScope(), id)
		}(ticket.TicketID)
	}
	wg.Wait()

	for _, ticket := range tickets {
		stored, err := mm.store.Get(ticket.TicketID)
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusFound, stored.Status)
	}
}

type panickingDirectory struct {
	mu    sync.Mutex
	calls int
}

func (d *panickingDirectory) ListServers(_ *envelope.Scope, _ models.ServerQuery) ([]models.ServerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls == 1 {
		panic("directory exploded")
	}
	return []models.ServerInfo{testsetup.WaitingServer("s1", "survival", "", 0, 8)}, nil
}

func TestRun_RecoversFromPanicAndKeepsSweeping(t *testing.T) {
	t.Parallel()
	directory := &panickingDirectory{}
	mm := NewMatchMaker(config.Default(), directory, testsetup.NewMetrics())
	ticket := mm.JoinQueue(testsetup.NewTestScope(), "player-1", request("survival", "", ""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		stored, err := mm.store.Get(ticket.TicketID)
		return err == nil && stored.Status == models.TicketStatusFound
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, mm.LastSweep().IsZero())
}
