package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/metrics"
)

const redisPingTimeout = 3 * time.Second

// NewRedisClient 连接 Redis 并 ping 一次
func NewRedisClient(addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("cache: redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return rdb, nil
}

// Redis 值以 JSON 形式保存在 prefix+key 下，多实例部署时共享
type Redis[V any] struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

func NewRedis[V any](client *redis.Client, prefix string, log logger.Logger) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix, log: log}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	bs, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		// redis.Nil 即未命中，其他错误按未命中处理但记录日志
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis get failed", logger.String("key", key), logger.Error(err))
		}
		metrics.CacheLookup("redis", false)
		return zero, false
	}
	var v V
	if err := json.Unmarshal(bs, &v); err != nil {
		r.log.Warn("redis value decode failed", logger.String("key", key), logger.Error(err))
		metrics.CacheLookup("redis", false)
		return zero, false
	}
	metrics.CacheLookup("redis", true)
	return v, true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	bs, err := json.Marshal(value)
	if err != nil {
		r.log.Warn("redis value encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, bs, ttl).Err(); err != nil {
		r.log.Warn("redis set failed", logger.String("key", key), logger.Error(err))
	}
}
