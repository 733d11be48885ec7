package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrTxConflict 表示乐观事务在重试次数耗尽后仍然冲突。
	// 纯粹的并发冲突在原语内部透明重试，只有耗尽后才对外暴露此错误。
	ErrTxConflict = errors.New("repository: transaction conflict")
	// ErrPreconditionFailed 表示事务在读取阶段发现前置条件不再成立
	// （例如对方的队列条目已不处于 waiting 状态），事务未执行任何写入。
	ErrPreconditionFailed = errors.New("repository: precondition failed")
)

// 特定资源的错误（基于通用错误，errors.Is 可互相匹配）
var (
	ErrUserNotFound       = ErrNotFound
	ErrRoomNotFound       = ErrNotFound
	ErrQueueEntryNotFound = ErrNotFound
	ErrPostNotFound       = ErrNotFound
)
