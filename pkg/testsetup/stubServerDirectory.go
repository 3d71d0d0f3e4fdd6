// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"fmt"
	"sync"

	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// StubServerDirectory serves a fixed server list in insertion order. Setting Err makes every query fail.
type StubServerDirectory struct {
	mu      sync.Mutex
	servers []models.ServerInfo
	err     error
	queries []models.ServerQuery

	gate    chan struct{}
	blocked chan struct{}
}

func NewStubServerDirectory(servers ...models.ServerInfo) *StubServerDirectory {
	return &StubServerDirectory{servers: servers}
}

func (s *StubServerDirectory) ListServers(_ *envelope.Scope, query models.ServerQuery) ([]models.ServerInfo, error) {
	s.mu.Lock()
	gate, blocked := s.gate, s.blocked
	s.mu.Unlock()
	if gate != nil {
		select {
		case blocked <- struct{}{}:
		default:
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrDirectoryUnavailable, s.err.Error())
	}

	matching := pie.Filter(s.servers, query.Matches)
	return pie.Map(matching, models.ServerInfo.Copy), nil
}

func (s *StubServerDirectory) SetServers(servers ...models.ServerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = servers
}

func (s *StubServerDirectory) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Block holds every query until the returned release is called. The returned channel receives once a query is
// being held.
func (s *StubServerDirectory) Block() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gate := make(chan struct{})
	blocked := make(chan struct{}, 1)
	s.gate, s.blocked = gate, blocked

	var once sync.Once
	return blocked, func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate, s.blocked = nil, nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Queries returns every query received so far.
func (s *StubServerDirectory) Queries() []models.ServerQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ServerQuery(nil), s.queries...)
}

// WaitingServer builds a joinable server for tests.
func WaitingServer(id string, gameMode string, region models.Region, currentPlayers int, maxPlayers int) models.ServerInfo {
	return models.ServerInfo{
		ID:             id,
		Name:           "server " + id,
		GameMode:       gameMode,
		Region:         region,
		MapName:        "mall",
		CurrentPlayers: currentPlayers,
		MaxPlayers:     maxPlayers,
		Status:         models.ServerStatusWaiting,
	}
}
