package common

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/logging"
)

func NewRedisClient(opts config.RedisOptions) *redis.Client {
	addr := fmt.Sprintf("%s:%s", opts.Host, opts.Port)
	logging.Info("[Redis] Initializing Redis client", "addr", addr)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// The pool keeps reconnecting; callers see errors per command.
		logging.Error("[Redis] Failed to ping Redis", "error", err)
		return client
	}

	logging.Info("[Redis] Successfully connected to Redis")
	return client
}
