// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env"

	"github.com/AccelByte/extend-server-matchmaker/pkg/constants"
)

const (
	DirectoryBackendMemory = "memory"
	DirectoryBackendRedis  = "redis"
)

type Config struct {
	HTTPAddress string `env:"HTTP_ADDRESS" envDefault:":8080" envDocs:"listen address of the http server (rest, websocket hubs, metrics)"`
	GRPCAddress string `env:"GRPC_ADDRESS" envDefault:":6565" envDocs:"listen address of the grpc health server"`

	SweepIntervalMs          int `env:"SWEEP_INTERVAL_MS"          envDefault:"3000" envDocs:"interval between two periodic sweeps over all pools"`
	TicketExpirySecond       int `env:"TICKET_EXPIRY_SECONDS"      envDefault:"300"  envDocs:"age after which a searching ticket is expired by the sweep"`
	ResolvedRetentionSecond  int `env:"RESOLVED_RETENTION_SECONDS" envDefault:"60"   envDocs:"how long a found ticket stays queryable before the sweep purges it"`
	PollIntervalMs           int `env:"POLL_INTERVAL_MS"           envDefault:"1000" envDocs:"interval between two status polls of a searching session"`
	PollMaxAttempts          int `env:"POLL_MAX_ATTEMPTS"          envDefault:"120"  envDocs:"number of polls before a searching session times out"`
	WebsocketWriteTimeoutMs  int `env:"WS_WRITE_TIMEOUT_MS"        envDefault:"5000" envDocs:"write deadline of a single push to a websocket connection"`
	SweepStaleAfterIntervals int `env:"SWEEP_STALE_AFTER_INTERVALS" envDefault:"5"  envDocs:"number of missed sweeps before the grpc health turns NOT_SERVING"`

	DirectoryBackend            string `env:"DIRECTORY_BACKEND"               envDefault:"memory"       envDocs:"server directory backend, memory or redis"`
	DirectoryHeartbeatTTLSecond int    `env:"DIRECTORY_HEARTBEAT_TTL_SECONDS" envDefault:"60"           envDocs:"servers without heartbeat within this window are hidden from the directory"`
	RedisAddr                   string `env:"REDIS_ADDR"                      envDefault:"localhost:6379" envDocs:"redis address of the redis server directory"`
	RedisPassword               string `env:"REDIS_PASSWORD"                  envDefault:""             envDocs:"redis password"`
	RedisDB                     int    `env:"REDIS_DB"                        envDefault:"0"            envDocs:"redis database number"`
	RedisKeyPrefix              string `env:"REDIS_KEY_PREFIX"                envDefault:"mm:directory:" envDocs:"prefix of every key written by the redis server directory"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"" envDocs:"HS256 key used to verify player bearer tokens"`
	JWTIssuer     string `env:"JWT_ISSUER"      envDefault:"" envDocs:"expected issuer of player bearer tokens, empty to skip the check"`

	ZipkinURL string `env:"ZIPKIN_URL" envDefault:""     envDocs:"zipkin collector endpoint, tracing export is disabled when empty"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info" envDocs:"logrus level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" envDocs:"text or json"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration with every field at its default value. The envDefault tags must agree with it.
func Default() *Config {
	return &Config{
		HTTPAddress:                 ":8080",
		GRPCAddress:                 ":6565",
		SweepIntervalMs:             int(constants.SweepInterval.Milliseconds()),
		TicketExpirySecond:          int(constants.TicketExpiry.Seconds()),
		ResolvedRetentionSecond:     int(constants.ResolvedRetention.Seconds()),
		PollIntervalMs:              int(constants.PollInterval.Milliseconds()),
		PollMaxAttempts:             constants.PollMaxAttempts,
		WebsocketWriteTimeoutMs:     5000,
		SweepStaleAfterIntervals:    5,
		DirectoryBackend:            DirectoryBackendMemory,
		DirectoryHeartbeatTTLSecond: int(constants.DirectoryHeartbeatTTL.Seconds()),
		RedisAddr:                   "localhost:6379",
		RedisKeyPrefix:              "mm:directory:",
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}

func (c *Config) Validate() error {
	positives := map[string]int{
		"SWEEP_INTERVAL_MS":               c.SweepIntervalMs,
		"TICKET_EXPIRY_SECONDS":           c.TicketExpirySecond,
		"RESOLVED_RETENTION_SECONDS":      c.ResolvedRetentionSecond,
		"POLL_INTERVAL_MS":                c.PollIntervalMs,
		"POLL_MAX_ATTEMPTS":               c.PollMaxAttempts,
		"WS_WRITE_TIMEOUT_MS":             c.WebsocketWriteTimeoutMs,
		"SWEEP_STALE_AFTER_INTERVALS":     c.SweepStaleAfterIntervals,
		"DIRECTORY_HEARTBEAT_TTL_SECONDS": c.DirectoryHeartbeatTTLSecond,
	}
	for key, value := range positives {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, value)
		}
	}

	switch c.DirectoryBackend {
	case DirectoryBackendMemory, DirectoryBackendRedis:
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.New("LOG_FORMAT must be text or json")
	}

	return nil
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

func (c *Config) TicketExpiry() time.Duration {
	return time.Duration(c.TicketExpirySecond) * time.Second
}

func (c *Config) ResolvedRetention() time.Duration {
	return time.Duration(c.ResolvedRetentionSecond) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) WebsocketWriteTimeout() time.Duration {
	return time.Duration(c.WebsocketWriteTimeoutMs) * time.Millisecond
}

func (c *Config) DirectoryHeartbeatTTL() time.Duration {
	return time.Duration(c.DirectoryHeartbeatTTLSecond) * time.Second
}
