package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gt:transcript:"

// Redis stores JSON entries with a server-side expiry equal to the cache TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// OpenRedis parses redisURL and pings the server.
func OpenRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("cache redis connected", slog.String("addr", opts.Addr))
	return NewRedis(rdb, ttl), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Get(ctx context.Context, key string) (Entry, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.rdb.Del(ctx, redisKeyPrefix+key)
		return Entry{}, ErrMiss
	}
	return e, nil
}

func (r *Redis) Put(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.rdb.Close() }
