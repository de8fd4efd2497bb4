package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/meridianhq/meridian/internal/models"
)

const keyPrefix = "resource:"

// Redis is a Cache backed by a Redis instance. Entries expire after ttl.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error {
	return c.rdb.Close()
}

func (c *Redis) Get(ctx context.Context, id string) (*models.Resource, bool) {
	data, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("cache get failed", slog.String("id", id), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var r models.Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (c *Redis) Set(ctx context.Context, r *models.Resource) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+r.ID, data, c.ttl).Err(); err != nil {
		slog.Debug("cache set failed", slog.String("id", r.ID), slog.String("error", err.Error()))
	}
}

func (c *Redis) Delete(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		slog.Debug("cache delete failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}
