// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"fmt"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	"github.com/AccelByte/extend-server-matchmaker/pkg/testsetup"
)

func TestBindPlayer_Lookups(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	r := New()

	_, evicted := r.BindPlayer("conn-1", "alice")
	g.Expect(evicted).To(BeFalse())

	connectionID, ok := r.LookupConnection("alice")
	g.Expect(ok).To(BeTrue())
	g.Expect(connectionID).To(Equal("conn-1"))

	playerID, ok := r.LookupPlayer("conn-1")
	g.Expect(ok).To(BeTrue())
	g.Expect(playerID).To(Equal("alice"))

	_, ok = r.LookupConnection("bob")
	g.Expect(ok).To(BeFalse())
}

func TestBindPlayer_ReconnectEvictsPreviousConnection(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	r := New()

	r.BindPlayer("conn-1", "alice")
	evicted, ok := r.BindPlayer("conn-2", "alice")
	g.Expect(ok).To(BeTrue())
	g.Expect(evicted).To(Equal("conn-1"))

	_, ok = r.LookupPlayer("conn-1")
	g.Expect(ok).To(BeFalse())

	// the old connection closing later must not remove the new mapping
	_, ok = r.UnbindPlayer("conn-1")
	g.Expect(ok).To(BeFalse())

	connectionID, ok := r.LookupConnection("alice")
	g.Expect(ok).To(BeTrue())
	g.Expect(connectionID).To(Equal("conn-2"))
}

func TestBindPlayer_RebindSameConnectionIsNotAnEviction(t *testing.T) {
	t.Parallel()
	r := New()

	r.BindPlayer("conn-1", "alice")
	_, ok := r.BindPlayer("conn-1", "alice")
	assert.False(t, ok)

	r.BindPlayer("conn-1", "bob")
	_, ok = r.LookupConnection("alice")
	assert.False(t, ok)
	connectionID, _ := r.LookupConnection("bob")
	assert.Equal(t, "conn-1", connectionID)
}

func TestUnbindPlayer(t *testing.T) {
	t.Parallel()
	r := New()
	r.BindPlayer("conn-1", "alice")

	playerID, ok := r.UnbindPlayer("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "alice", playerID)

	_, ok = r.UnbindPlayer("conn-1")
	assert.False(t, ok)
	_, ok = r.LookupConnection("alice")
	assert.False(t, ok)
}

func TestServerBindingIsIndependentOfPlayers(t *testing.T) {
	t.Parallel()
	r := New()

	r.BindPlayer("conn-1", "alice")
	r.BindServer("conn-1", "server-9")
	r.BindServer("conn-2", "server-1")

	assert.Equal(t, []string{"server-1", "server-9"}, r.ServerIDs())

	r.UnbindPlayer("conn-1")
	serverID, ok := r.LookupServer("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "server-9", serverID)

	connectionID, ok := r.UnregisterServer("server-1")
	assert.True(t, ok)
	assert.Equal(t, "conn-2", connectionID)
	_, ok = r.LookupServer("conn-2")
	assert.False(t, ok)

	_, ok = r.LookupServerConnection("server-1")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			player := fmt.Sprintf("player-%d", i%4)
			for j := 0; j < 100; j++ {
				connectionID := fmt.Sprintf("conn-%d-%d", i, j)
				r.BindPlayer(connectionID, player)
				r.LookupConnection(player)
				r.BindServer(connectionID, fmt.Sprintf("server-%d", i))
				r.UnbindPlayer(connectionID)
				r.UnbindServer(connectionID)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		_, ok := r.LookupConnection(fmt.Sprintf("player-%d", i))
		assert.False(t, ok)
	}
	assert.Empty(t, r.ServerIDs())
}
