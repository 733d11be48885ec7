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

// RedisRoomRepository 是 RoomRepository 接口的 Redis 实现
type RedisRoomRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomRepository 创建 RedisRoomRepository 实例
func NewRedisRoomRepository(client *redis.Client, keyPrefix string) *RedisRoomRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "hb:"
	}
	return &RedisRoomRepository{client: client, keyPrefix: keyPrefix}
}

// Create 直接写入新房间并发布创建快照。
func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	b, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.ID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, roomKey(r.keyPrefix, room.ID), b, 0)
	pipe.ZAdd(ctx, roomIndexKey(r.keyPrefix), &redis.Z{
		Score:  float64(room.CreatedAt.UnixMilli()),
		Member: room.ID,
	})
	pipe.Publish(ctx, roomEventsChannel(r.keyPrefix, room.ID), b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to create room %s: %w", room.ID, err)
	}
	return nil
}

// Get 读取房间文档。
func (r *RedisRoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	val, err := r.client.Get(ctx, roomKey(r.keyPrefix, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room %s: %w", id, err)
	}
	var room domain.Room
	if err := json.Unmarshal(val, &room); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room %s: %w", id, err)
	}
	return &room, nil
}

// CreateForMatch 在一个 WATCH 事务里写入房间并翻转两个队列条目。
// WATCH 覆盖两个条目的 key：任何一方在读取与提交之间被并发修改
// （被别人抢先匹配、取消等），事务都会失败并重试；重读后若条目
// 不再是 waiting，返回 ErrPreconditionFailed，保证一个条目永远
// 不会指向两个房间。
func (r *RedisRoomRepository) CreateForMatch(ctx context.Context, room *domain.Room, myEntryID, oppEntryID string) error {
	myKey := queueEntryKey(r.keyPrefix, myEntryID)
	oppKey := queueEntryKey(r.keyPrefix, oppEntryID)

	txf := func(tx *redis.Tx) error {
		loadWaiting := func(key, id string) (*domain.QueueEntry, error) {
			val, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil, repository.ErrQueueEntryNotFound
				}
				return nil, err
			}
			var entry domain.QueueEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return nil, fmt.Errorf("redis: failed to unmarshal queue entry %s: %w", id, err)
			}
			if entry.Status != domain.QueueStatusWaiting {
				return nil, repository.ErrPreconditionFailed
			}
			return &entry, nil
		}

		mine, err := loadWaiting(myKey, myEntryID)
		if err != nil {
			return err
		}
		opp, err := loadWaiting(oppKey, oppEntryID)
		if err != nil {
			return err
		}

		now := time.Now()
		mine.Status = domain.QueueStatusMatched
		mine.RoomID = room.ID
		mine.LastActive = now
		opp.Status = domain.QueueStatusMatched
		opp.RoomID = room.ID
		opp.LastActive = now

		roomBytes, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal room %s: %w", room.ID, err)
		}
		mineBytes, err := json.Marshal(mine)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal queue entry %s: %w", myEntryID, err)
		}
		oppBytes, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal queue entry %s: %w", oppEntryID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(r.keyPrefix, room.ID), roomBytes, 0)
			pipe.ZAdd(ctx, roomIndexKey(r.keyPrefix), &redis.Z{
				Score:  float64(room.CreatedAt.UnixMilli()),
				Member: room.ID,
			})
			pipe.Set(ctx, myKey, mineBytes, 0)
			pipe.Set(ctx, oppKey, oppBytes, 0)
			// 已匹配的条目移出扫描索引，不再占用等待窗口
			pipe.ZRem(ctx, queueIndexKey(r.keyPrefix), myEntryID, oppEntryID)
			pipe.Publish(ctx, roomEventsChannel(r.keyPrefix, room.ID), roomBytes)
			pipe.Publish(ctx, queueEntryChannel(r.keyPrefix, myEntryID), mineBytes)
			pipe.Publish(ctx, queueEntryChannel(r.keyPrefix, oppEntryID), oppBytes)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, myKey, oppKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return repository.ErrTxConflict
}

// UpdateTx 对房间文档执行 WATCH 保护的读-改-写，成功写入后发布快照。
func (r *RedisRoomRepository) UpdateTx(ctx context.Context, id string, mutate func(room *domain.Room) (bool, error)) (*domain.Room, error) {
	key := roomKey(r.keyPrefix, id)
	var result *domain.Room

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return repository.ErrRoomNotFound
			}
			return err
		}
		var room domain.Room
		if err := json.Unmarshal(val, &room); err != nil {
			return fmt.Errorf("redis: failed to unmarshal room %s: %w", id, err)
		}
		write, err := mutate(&room)
		if err != nil {
			return err
		}
		result = &room
		if !write {
			return nil
		}
		b, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal room %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.Publish(ctx, roomEventsChannel(r.keyPrefix, id), b)
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
			continue
		}
		return nil, err
	}
	return nil, repository.ErrTxConflict
}

// Subscribe 订阅房间文档的快照流。
func (r *RedisRoomRepository) Subscribe(ctx context.Context, id string) (<-chan domain.Room, func(), error) {
	pubsub := r.client.Subscribe(ctx, roomEventsChannel(r.keyPrefix, id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe room %s: %w", id, err)
	}

	out := make(chan domain.Room, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var room domain.Room
			if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
				logrus.WithError(err).Warnf("redis: bad room event payload on %s", msg.Channel)
				continue
			}
			select {
			case out <- room:
			default:
			}
		}
	}()
	stop := func() { _ = pubsub.Close() }
	return out, stop, nil
}

// PublishMessage 把聊天消息发布到房间的消息频道。
func (r *RedisRoomRepository) PublishMessage(ctx context.Context, roomID string, msg domain.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message for room %s: %w", roomID, err)
	}
	if err := r.client.Publish(ctx, roomMessagesChannel(r.keyPrefix, roomID), b).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":      roomID,
			"payload_size": len(b),
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish message to room %s: %w", roomID, err)
	}
	return nil
}

// SubscribeMessages 订阅房间的消息频道。
func (r *RedisRoomRepository) SubscribeMessages(ctx context.Context, roomID string) (<-chan domain.Message, func(), error) {
	pubsub := r.client.Subscribe(ctx, roomMessagesChannel(r.keyPrefix, roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe messages for room %s: %w", roomID, err)
	}

	out := make(chan domain.Message, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var m domain.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				logrus.WithError(err).Warnf("redis: bad message payload on %s", msg.Channel)
				continue
			}
			select {
			case out <- m:
			default:
				logrus.Warnf("redis: message subscriber for room %s is slow, dropping message", roomID)
			}
		}
	}()
	stop := func() { _ = pubsub.Close() }
	return out, stop, nil
}

// ListCreatedBefore 返回创建时间早于 cutoff 的房间 ID。
func (r *RedisRoomRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := r.client.ZRangeByScore(ctx, roomIndexKey(r.keyPrefix), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", cutoff.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to range room index: %w", err)
	}
	return ids, nil
}

// RemoveFromIndex 把房间移出清理索引。
func (r *RedisRoomRepository) RemoveFromIndex(ctx context.Context, id string) error {
	if err := r.client.ZRem(ctx, roomIndexKey(r.keyPrefix), id).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove room %s from index: %w", id, err)
	}
	return nil
}
