package repository

import (
	"context"
	"time"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// QueueRepository 定义了匹配队列条目的存储操作，由 Redis 实现。
//
// 队列条目是共享可变文档：状态翻转 (waiting → matched) 由找到匹配的
// 一方在事务中完成（见 RoomRepository.CreateForMatch），这里的方法
// 只覆盖条目自身的生命周期和调用方私有字段。
type QueueRepository interface {
	// Create 写入一个新的队列条目（ID 由调用方预先生成）并加入
	// 按 CreatedAt 排序的扫描索引。
	Create(ctx context.Context, entry *domain.QueueEntry) error

	// Get 读取单个条目。不存在时返回 ErrQueueEntryNotFound。
	Get(ctx context.Context, id string) (*domain.QueueEntry, error)

	// FindByUID 返回某用户的全部条目（正常情况下最多一个，
	// 防御性地返回列表以便清理孤儿条目）。
	FindByUID(ctx context.Context, uid uint) ([]domain.QueueEntry, error)

	// DeleteByUID 删除某用户的全部条目。幂等。
	DeleteByUID(ctx context.Context, uid uint) error

	// ListWaiting 按入队时间升序（最久等待优先）返回至多 limit 个
	// 状态为 waiting 的条目。这是一个有界窗口，不是全表扫描。
	ListWaiting(ctx context.Context, limit int) ([]domain.QueueEntry, error)

	// UpdateTx 对单个条目执行原子读-改-写。mutate 返回 false 时
	// 放弃写入（只读退出）。条目不存在时返回 ErrQueueEntryNotFound。
	// 写入成功后把新文档发布到该条目的事件频道。
	UpdateTx(ctx context.Context, id string, mutate func(e *domain.QueueEntry) (bool, error)) (*domain.QueueEntry, error)

	// Subscribe 订阅条目文档的实时更新。返回的取消函数必须被调用。
	Subscribe(ctx context.Context, id string) (<-chan domain.QueueEntry, func(), error)

	// DeleteStale 删除 lastActive 早于 cutoff 的条目，返回删除数量。
	// 仅由后台清理任务使用。
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}
