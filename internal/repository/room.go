package repository

import (
	"context"
	"time"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// RoomRepository 定义了房间文档的存储操作，由 Redis 实现。
//
// 房间是整个同意流程的共享状态，所有依赖当前内容的写入都必须通过
// UpdateTx / CreateForMatch 的原子读-改-写完成；对同一房间的并发
// 事务由存储层线性化，法定人数判断永远不会观察到撕裂的中间态。
type RoomRepository interface {
	// Create 直接写入一个新房间（测试机器人房间等无需事务的场景）
	// 并发布创建事件。
	Create(ctx context.Context, room *domain.Room) error

	// Get 读取房间文档。不存在时返回 ErrRoomNotFound。
	Get(ctx context.Context, id string) (*domain.Room, error)

	// CreateForMatch 在一个事务中完成匹配成功后的三项写入：
	// 写入房间文档，并把两个队列条目标记为 matched 且指向该房间。
	// 事务在读取阶段校验两个条目仍为 waiting；任何一个不满足时
	// 返回 ErrPreconditionFailed 且不产生任何写入——这是防止
	// 重复匹配的关键点。
	CreateForMatch(ctx context.Context, room *domain.Room, myEntryID, oppEntryID string) error

	// UpdateTx 对房间文档执行原子读-改-写：在事务内重新读取当前
	// 文档，调用 mutate 纯函数式地计算新字段，然后条件写回；
	// 并发冲突在内部透明重试。mutate 返回 false 表示无需写入
	// （例如迟到的投票遇到已终止的状态）。写入成功后把新文档
	// 发布到房间事件频道。返回事务观察到的最终文档。
	UpdateTx(ctx context.Context, id string, mutate func(r *domain.Room) (bool, error)) (*domain.Room, error)

	// Subscribe 订阅房间文档的实时更新（每次事务写入后的完整快照）。
	Subscribe(ctx context.Context, id string) (<-chan domain.Room, func(), error)

	// PublishMessage 把一条聊天消息发布到房间的消息频道。
	PublishMessage(ctx context.Context, roomID string, msg domain.Message) error

	// SubscribeMessages 订阅房间消息频道的实时消息流。
	SubscribeMessages(ctx context.Context, roomID string) (<-chan domain.Message, func(), error)

	// ListCreatedBefore 返回创建时间早于 cutoff 的房间 ID（有界）。
	// 仅由后台清理任务使用。
	ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// RemoveFromIndex 把已终结的房间移出清理索引。房间文档本身
	// 不会被删除（保留由外部策略决定）。
	RemoveFromIndex(ctx context.Context, id string) error
}
