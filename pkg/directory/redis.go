// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AccelByte/extend-server-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

var _ Registrar = (*RedisDirectory)(nil)

type storedServer struct {
	Info  models.ServerInfo `json:"info"`
	Token string            `json:"token"`
}

// RedisDirectory stores every server as a json value expiring after the heartbeat ttl, plus a set indexing the
// server ids. Ids whose value expired are dropped from the set on the next listing.
type RedisDirectory struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDirectory(client *redis.Client, keyPrefix string, heartbeatTTL time.Duration) *RedisDirectory {
	return &RedisDirectory{
		client: client,
		prefix: keyPrefix,
		ttl:    heartbeatTTL,
	}
}

// Ping checks the connection to redis.
func (d *RedisDirectory) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %s", models.ErrDirectoryUnavailable, err.Error())
	}
	return nil
}

func (d *RedisDirectory) ListServers(rootScope *envelope.Scope, query models.ServerQuery) ([]models.ServerInfo, error) {
	scope := rootScope.NewChildScope("RedisDirectory.ListServers")
	defer scope.Finish()

	ids, err := d.client.SMembers(scope.Ctx, d.indexKey()).Result()
	if err != nil {
		return nil, unavailable("list server ids", err)
	}
	if len(ids) == 0 {
		return []models.ServerInfo{}, nil
	}

	values, err := d.client.MGet(scope.Ctx, pie.Map(ids, d.serverKey)...).Result()
	if err != nil {
		return nil, unavailable("load servers", err)
	}

	servers, stale := decodeServers(ids, values)
	if len(stale) > 0 {
		if err := d.client.SRem(scope.Ctx, d.indexKey(), pie.Map(stale, toInterface)...).Err(); err != nil {
			scope.Log.WithError(err).Warn("unable to prune expired server ids")
		}
	}

	servers = pie.Filter(servers, query.Matches)
	return sortServers(servers), nil
}

func (d *RedisDirectory) GetServer(scope *envelope.Scope, serverID string) (models.ServerInfo, error) {
	stored, err := d.load(scope.Ctx, serverID)
	if err != nil {
		return models.ServerInfo{}, err
	}
	return stored.Info, nil
}

func (d *RedisDirectory) Register(rootScope *envelope.Scope, registration models.ServerRegistration) (models.ServerInfo, string, error) {
	scope := rootScope.NewChildScope("RedisDirectory.Register")
	defer scope.Finish()

	registration.SetDefaultValues()
	if err := registration.Validate(); err != nil {
		return models.ServerInfo{}, "", err
	}

	stored := storedServer{
		Info: models.ServerInfo{
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
		},
		Token: utils.GenerateUUID(),
	}

	if err := d.save(scope.Ctx, stored); err != nil {
		return models.ServerInfo{}, "", err
	}

	scope.Log.WithField("serverID", stored.Info.ID).WithField("region", stored.Info.Region).Info("game server registered")

	return stored.Info, stored.Token, nil
}

func (d *RedisDirectory) Update(rootScope *envelope.Scope, serverID string, token string, update models.ServerUpdate) (models.ServerInfo, error) {
	scope := rootScope.NewChildScope("RedisDirectory.Update")
	defer scope.Finish()

	if err := update.Validate(); err != nil {
		return models.ServerInfo{}, err
	}

	stored, err := d.authenticated(scope.Ctx, serverID, token)
	if err != nil {
		return models.ServerInfo{}, err
	}

	update.Apply(&stored.Info)
	if err := d.save(scope.Ctx, stored); err != nil {
		return models.ServerInfo{}, err
	}

	return stored.Info, nil
}

func (d *RedisDirectory) Heartbeat(scope *envelope.Scope, serverID string, token string) error {
	if _, err := d.authenticated(scope.Ctx, serverID, token); err != nil {
		return err
	}

	ok, err := d.client.Expire(scope.Ctx, d.serverKey(serverID), d.ttl).Result()
	if err != nil {
		return unavailable("refresh server", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrServerNotFound, serverID)
	}
	return nil
}

func (d *RedisDirectory) Deregister(rootScope *envelope.Scope, serverID string, token string) error {
	scope := rootScope.NewChildScope("RedisDirectory.Deregister")
	defer scope.Finish()

	if _, err := d.authenticated(scope.Ctx, serverID, token); err != nil {
		return err
	}

	_, err := d.client.TxPipelined(scope.Ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(scope.Ctx, d.serverKey(serverID))
		pipe.SRem(scope.Ctx, d.indexKey(), serverID)
		return nil
	})
	if err != nil {
		return unavailable("remove server", err)
	}

	scope.Log.WithField("serverID", serverID).Info("game server deregistered")
	return nil
}

func (d *RedisDirectory) ValidateToken(serverID string, token string) error {
	_, err := d.authenticated(context.Background(), serverID, token)
	return err
}

func (d *RedisDirectory) authenticated(ctx context.Context, serverID string, token string) (storedServer, error) {
	stored, err := d.load(ctx, serverID)
	if err != nil {
		return storedServer{}, err
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		return storedServer{}, fmt.Errorf("%w: %s", models.ErrInvalidServerToken, serverID)
	}
	return stored, nil
}

func (d *RedisDirectory) load(ctx context.Context, serverID string) (storedServer, error) {
	data, err := d.client.Get(ctx, d.serverKey(serverID)).Result()
	if errors.Is(err, redis.Nil) {
		return storedServer{}, fmt.Errorf("%w: %s", models.ErrServerNotFound, serverID)
	}
	if err != nil {
		return storedServer{}, unavailable("load server", err)
	}

	var stored storedServer
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return storedServer{}, fmt.Errorf("%w: %s is corrupted", models.ErrServerNotFound, serverID)
	}
	return stored, nil
}

func (d *RedisDirectory) save(ctx context.Context, stored storedServer) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("unable to marshal server %s: %w", stored.Info.ID, err)
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, d.serverKey(stored.Info.ID), data, d.ttl)
		pipe.SAdd(ctx, d.indexKey(), stored.Info.ID)
		return nil
	})
	if err != nil {
		return unavailable("store server", err)
	}
	return nil
}

func (d *RedisDirectory) indexKey() string {
	return d.prefix + "servers"
}

func (d *RedisDirectory) serverKey(serverID string) string {
	return d.prefix + "server:" + serverID
}

// decodeServers pairs MGET results with their ids. Missing or undecodable values are reported as stale.
func decodeServers(ids []string, values []interface{}) ([]models.ServerInfo, []string) {
	servers := make([]models.ServerInfo, 0, len(values))
	var stale []string
	for i, value := range values {
		if i >= len(ids) {
			break
		}
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var stored storedServer
		if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Info.ID == "" {
			stale = append(stale, ids[i])
			continue
		}
		servers = append(servers, stored.Info)
	}
	return servers, stale
}

func unavailable(action string, err error) error {
	return fmt.Errorf("%w: unable to %s: %s", models.ErrDirectoryUnavailable, action, err.Error())
}

func toInterface(s string) interface{} {
	return s
}
