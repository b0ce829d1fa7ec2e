// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides the client behind the optional Redis rate limiter.

The only traffic is one fixed-window script call per limited request, plus
the readiness ping. A script call increments a counter, so a call that timed
out may already have counted; the client never retries commands and lets the
caller surface the error instead of counting twice.

Sessions, attempts and verifications are never stored here; they live in the
relational store only.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/sleeporgive/internal/platform/constants"
)

const (
	dialTimeout = 3 * time.Second
	pingTimeout = 2 * time.Second

	// commandTimeout bounds a read or write. A limiter call sits in front of
	// every auth request, so it must fail well inside the request deadline.
	commandTimeout = 500 * time.Millisecond

	poolSize     = 20
	minIdleConns = 2
)

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	configure(options)

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// configure applies the limiter workload settings to parsed options.
func configure(options *redis.Options) {
	options.ClientName = constants.AppName
	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns

	// -1 disables retries; 0 would mean the library default of 3.
	options.MaxRetries = -1

	options.DialTimeout = dialTimeout
	options.ReadTimeout = commandTimeout
	options.WriteTimeout = commandTimeout
	options.PoolTimeout = commandTimeout
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
