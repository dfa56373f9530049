package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/Victor-Weng/sunset-spot/internal/logs"
)

// Cache holds viewer-independent pages. Keys already carry the generation,
// so a backend never has to know about invalidation to stay correct.
type Cache interface {
	Get(ctx context.Context, key string) ([]PostView, bool)
	Set(ctx context.Context, key string, views []PostView)
	Purge(ctx context.Context)
}

type LRU struct {
	lru *expirable.LRU[string, []PostView]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{lru: expirable.NewLRU[string, []PostView](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) ([]PostView, bool) {
	return c.lru.Get(key)
}

func (c *LRU) Set(_ context.Context, key string, views []PostView) {
	c.lru.Add(key, views)
}

func (c *LRU) Purge(context.Context) {
	c.lru.Purge()
}

type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, prefix: "spot:feed:"}
}

func (c *Redis) Get(ctx context.Context, key string) ([]PostView, bool) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logs.LogJSON("WARN", "Feed cache read failed", map[string]interface{}{"error": err.Error(), "extra": key})
		}
		return nil, false
	}
	var views []PostView
	if err := json.Unmarshal(b, &views); err != nil {
		return nil, false
	}
	return views, true
}

func (c *Redis) Set(ctx context.Context, key string, views []PostView) {
	b, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, c.ttl).Err(); err != nil {
		logs.LogJSON("WARN", "Feed cache write failed", map[string]interface{}{"error": err.Error(), "extra": key})
	}
}

// Purge is a no-op: entries of older generations are never read again and
// expire with their TTL.
func (c *Redis) Purge(context.Context) {}
