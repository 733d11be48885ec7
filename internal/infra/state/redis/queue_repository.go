package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// RedisQueueRepository 是 QueueRepository 接口的 Redis 实现
type RedisQueueRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisQueueRepository 创建 RedisQueueRepository 实例
func NewRedisQueueRepository(client *redis.Client, keyPrefix string) *RedisQueueRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisQueueRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "hb:" // 默认前缀 "hb:" (honbap)
	}
	return &RedisQueueRepository{client: client, keyPrefix: keyPrefix}
}

// Create 写入新条目并登记两个索引（扫描索引 + 用户索引）。
func (r *RedisQueueRepository) Create(ctx context.Context, entry *domain.QueueEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal queue entry %s: %w", entry.ID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, queueEntryKey(r.keyPrefix, entry.ID), b, 0)
	pipe.ZAdd(ctx, queueIndexKey(r.keyPrefix), &redis.Z{
		Score:  float64(entry.CreatedAt.UnixMilli()),
		Member: entry.ID,
	})
	pipe.SAdd(ctx, queueUserKey(r.keyPrefix, entry.UID), entry.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to create queue entry %s: %w", entry.ID, err)
	}
	return nil
}

// Get 读取单个条目。
func (r *RedisQueueRepository) Get(ctx context.Context, id string) (*domain.QueueEntry, error) {
	val, err := r.client.Get(ctx, queueEntryKey(r.keyPrefix, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrQueueEntryNotFound
		}
		return nil, fmt.Errorf("redis: failed to get queue entry %s: %w", id, err)
	}
	var entry domain.QueueEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal queue entry %s: %w", id, err)
	}
	return &entry, nil
}

// FindByUID 通过用户索引返回该用户的全部条目。
func (r *RedisQueueRepository) FindByUID(ctx context.Context, uid uint) ([]domain.QueueEntry, error) {
	ids, err := r.client.SMembers(ctx, queueUserKey(r.keyPrefix, uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list queue entries for uid %d: %w", uid, err)
	}
	entries := make([]domain.QueueEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue // 索引残留，条目已删除
			}
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// DeleteByUID 删除该用户的全部条目及索引记录。幂等。
func (r *RedisQueueRepository) DeleteByUID(ctx context.Context, uid uint) error {
	userKey := queueUserKey(r.keyPrefix, uid)
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to list queue entries for uid %d: %w", uid, err)
	}
	if len(ids) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, queueEntryKey(r.keyPrefix, id))
		pipe.ZRem(ctx, queueIndexKey(r.keyPrefix), id)
	}
	pipe.Del(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to delete queue entries for uid %d: %w", uid, err)
	}
	return nil
}

// ListWaiting 从扫描索引按入队时间升序取出至多 limit 个条目，
// 只返回状态仍为 waiting 的文档（对应原查询的 status 过滤）。
func (r *RedisQueueRepository) ListWaiting(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	ids, err := r.client.ZRange(ctx, queueIndexKey(r.keyPrefix), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to range queue index: %w", err)
	}
	entries := make([]domain.QueueEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if entry.Status != domain.QueueStatusWaiting {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// UpdateTx 对单个条目执行 WATCH 保护的读-改-写。
func (r *RedisQueueRepository) UpdateTx(ctx context.Context, id string, mutate func(e *domain.QueueEntry) (bool, error)) (*domain.QueueEntry, error) {
	key := queueEntryKey(r.keyPrefix, id)
	var result *domain.QueueEntry

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repository.ErrQueueEntryNotFound
			}
			return err
		}
		var entry domain.QueueEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("redis: failed to unmarshal queue entry %s: %w", id, err)
		}
		write, err := mutate(&entry)
		if err != nil {
			return err
		}
		result = &entry
		if !write {
			return nil // 只读退出，不产生写入
		}
		b, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal queue entry %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.Publish(ctx, queueEntryChannel(r.keyPrefix, id), b)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // 乐观冲突，透明重试
		}
		return nil, err
	}
	return nil, repository.ErrTxConflict
}

// Subscribe 订阅条目文档的更新流。
func (r *RedisQueueRepository) Subscribe(ctx context.Context, id string) (<-chan domain.QueueEntry, func(), error) {
	pubsub := r.client.Subscribe(ctx, queueEntryChannel(r.keyPrefix, id))
	// 确认订阅已生效，避免错过紧随其后的更新
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe queue entry %s: %w", id, err)
	}

	out := make(chan domain.QueueEntry, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var entry domain.QueueEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
				logrus.WithError(err).Warnf("redis: bad queue entry event payload on %s", msg.Channel)
				continue
			}
			select {
			case out <- entry:
			default:
				// 订阅者处理过慢时丢弃旧快照，等待者只关心最新状态
			}
		}
	}()
	stop := func() { _ = pubsub.Close() }
	return out, stop, nil
}

// DeleteStale 删除 lastActive 早于 cutoff 的条目。只由清理任务调用。
func (r *RedisQueueRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.client.ZRange(ctx, queueIndexKey(r.keyPrefix), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to range queue index: %w", err)
	}
	deleted := 0
	for _, id := range ids {
		entry, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// 文档已不在，顺手清掉索引残留
				r.client.ZRem(ctx, queueIndexKey(r.keyPrefix), id)
				continue
			}
			return deleted, err
		}
		if entry.LastActive.After(cutoff) {
			continue
		}
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, queueEntryKey(r.keyPrefix, id))
		pipe.ZRem(ctx, queueIndexKey(r.keyPrefix), id)
		pipe.SRem(ctx, queueUserKey(r.keyPrefix, entry.UID), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, fmt.Errorf("redis: failed to delete stale entry %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}
