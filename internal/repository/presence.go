package repository

import (
	"context"
	"time"
)

// PresenceRepository 定义了用户在线心跳的存储操作，由 Redis 实现。
// 心跳是调用方私有字段，允许无条件覆盖写入。
type PresenceRepository interface {
	// Heartbeat 记录用户的最近活跃时间，并刷新过期时间。
	Heartbeat(ctx context.Context, uid uint, at time.Time) error

	// LastActive 返回用户的最近活跃时间；无记录时返回零值和 nil。
	LastActive(ctx context.Context, uid uint) (time.Time, error)
}
