// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/patrickmn/go-cache"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

var _ Registrar = (*MemoryDirectory)(nil)

type registeredServer struct {
	info  models.ServerInfo
	token string
}

// MemoryDirectory keeps registered servers in a cache whose entries expire when no heartbeat arrives within the ttl.
// The mutex serializes read-modify-write updates of a single entry.
type MemoryDirectory struct {
	mu      sync.Mutex
	servers *cache.Cache
}

func NewMemoryDirectory(heartbeatTTL time.Duration) *MemoryDirectory {
	return &MemoryDirectory{
		servers: cache.New(heartbeatTTL, 2*heartbeatTTL),
	}
}

func (d *MemoryDirectory) ListServers(rootScope *envelope.Scope, query models.ServerQuery) ([]models.ServerInfo, error) {
	scope := rootScope.NewChildScope("MemoryDirectory.ListServers")
	defer scope.Finish()

	items := d.servers.Items()
	servers := make([]models.ServerInfo, 0, len(items))
	for _, item := range items {
		registered, ok := item.Object.(registeredServer)
		if !ok {
			continue
		}
		servers = append(servers, registered.info)
	}

	servers = pie.Filter(servers, query.Matches)
	return pie.Map(sortServers(servers), models.ServerInfo.Copy), nil
}

func (d *MemoryDirectory) GetServer(_ *envelope.Scope, serverID string) (models.ServerInfo, error) {
	registered, err := d.get(serverID)
	if err != nil {
		return models.ServerInfo{}, err
	}
	return registered.info.Copy(), nil
}

// Register validates the registration and stores a waiting server. The returned token authenticates later calls
// for that server.
func (d *MemoryDirectory) Register(rootScope *envelope.Scope, registration models.ServerRegistration) (models.ServerInfo, string, error) {
	scope := rootScope.NewChildScope("MemoryDirectory.Register")
	defer scope.Finish()

	registration.SetDefaultValues()
	if err := registration.Validate(); err != nil {
		return models.ServerInfo{}, "", err
	}

	info := models.ServerInfo{
		ID:         utils.GenerateULID(time.Now()),
		Name:       registration.Name,
		IPAddress:  registration.IPAddress,
		Port:       registration.Port,
		Region:     registration.Region,
		MapName:    registration.MapName,
		GameMode:   registration.GameMode,
		MaxPlayers: registration.MaxPlayers,
		Difficulty: registration.Difficulty,
		IsOfficial: registration.IsOfficial,
		Status:     models.ServerStatusWaiting,
	}
	token := utils.GenerateUUID()

	d.servers.Set(info.ID, registeredServer{info: info, token: token}, cache.DefaultExpiration)

	scope.Log.WithField("serverID", info.ID).WithField("region", info.Region).Info("game server registered")

	return info.Copy(), token, nil
}

func (d *MemoryDirectory) Update(rootScope *envelope.Scope, serverID string, token string, update models.ServerUpdate) (models.ServerInfo, error) {
	scope := rootScope.NewChildScope("MemoryDirectory.Update")
	defer scope.Finish()

	if err := update.Validate(); err != nil {
		return models.ServerInfo{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	registered, err := d.authenticated(serverID, token)
	if err != nil {
		return models.ServerInfo{}, err
	}

	update.Apply(&registered.info)
	d.servers.Set(serverID, registered, cache.DefaultExpiration)

	return registered.info.Copy(), nil
}

// Heartbeat extends the server's lifetime by one ttl.
func (d *MemoryDirectory) Heartbeat(_ *envelope.Scope, serverID string, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	registered, err := d.authenticated(serverID, token)
	if err != nil {
		return err
	}

	d.servers.Set(serverID, registered, cache.DefaultExpiration)
	return nil
}

func (d *MemoryDirectory) Deregister(rootScope *envelope.Scope, serverID string, token string) error {
	scope := rootScope.NewChildScope("MemoryDirectory.Deregister")
	defer scope.Finish()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.authenticated(serverID, token); err != nil {
		return err
	}

	d.servers.Delete(serverID)
	scope.Log.WithField("serverID", serverID).Info("game server deregistered")
	return nil
}

func (d *MemoryDirectory) ValidateToken(serverID string, token string) error {
	_, err := d.authenticated(serverID, token)
	return err
}

func (d *MemoryDirectory) authenticated(serverID string, token string) (registeredServer, error) {
	registered, err := d.get(serverID)
	if err != nil {
		return registeredServer{}, err
	}
	if subtle.ConstantTimeCompare([]byte(registered.token), []byte(token)) != 1 {
		return registeredServer{}, fmt.Errorf("%w: %s", models.ErrInvalidServerToken, serverID)
	}
	return registered, nil
}

func (d *MemoryDirectory) get(serverID string) (registeredServer, error) {
	value, found := d.servers.Get(serverID)
	if !found {
		return registeredServer{}, fmt.Errorf("%w: %s", models.ErrServerNotFound, serverID)
	}
	registered, ok := value.(registeredServer)
	if !ok {
		return registeredServer{}, fmt.Errorf("%w: %s", models.ErrServerNotFound, serverID)
	}
	return registered, nil
}
