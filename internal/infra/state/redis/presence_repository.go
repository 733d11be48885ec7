package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 心跳记录的保留时长。远大于在线判定窗口即可，主要防止无用 key 堆积。
const presenceTTL = 24 * time.Hour

// RedisPresenceRepository 是 PresenceRepository 接口的 Redis 实现。
// 心跳是调用方私有字段，无条件覆盖写入是安全的。
type RedisPresenceRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPresenceRepository 创建 RedisPresenceRepository 实例
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "hb:"
	}
	return &RedisPresenceRepository{client: client, keyPrefix: keyPrefix}
}

// Heartbeat 记录最近活跃时间（毫秒时间戳）并刷新 TTL。
func (r *RedisPresenceRepository) Heartbeat(ctx context.Context, uid uint, at time.Time) error {
	key := presenceKey(r.keyPrefix, uid)
	if err := r.client.Set(ctx, key, at.UnixMilli(), presenceTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to record heartbeat for uid %d: %w", uid, err)
	}
	return nil
}

// LastActive 读取最近活跃时间；无记录时返回零值。
func (r *RedisPresenceRepository) LastActive(ctx context.Context, uid uint) (time.Time, error) {
	key := presenceKey(r.keyPrefix, uid)
	ms, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis: failed to get heartbeat for uid %d: %w", uid, err)
	}
	return time.UnixMilli(ms), nil
}
