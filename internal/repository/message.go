package repository

import (
	"context"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// MessageRepository 定义了聊天消息在持久化存储（数据库）中的操作。
type MessageRepository interface {
	// SaveBatch 批量保存消息记录。由后台持久化任务调用。
	SaveBatch(ctx context.Context, msgs []domain.Message) error

	// Recent 返回指定房间最近 limit 条消息，按创建时间升序。
	Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}
