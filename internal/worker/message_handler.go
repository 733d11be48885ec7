package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/tasks"
)

// MessagePersistenceHandler 把已经扇出的聊天消息写入 MySQL
type MessagePersistenceHandler struct {
	msgRepo repository.MessageRepository
}

// NewMessagePersistenceHandler 创建 Handler 实例
func NewMessagePersistenceHandler(msgRepo repository.MessageRepository) *MessagePersistenceHandler {
	return &MessagePersistenceHandler{msgRepo: msgRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *MessagePersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.MessagePersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal message persist payload")
		// 载荷损坏重试无意义
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.msgRepo.SaveBatch(ctx, []domain.Message{payload.Message}); err != nil {
		logrus.WithError(err).WithField("room_id", payload.Message.RoomID).Error("Failed to persist message")
		return fmt.Errorf("failed to persist message for room %s: %w", payload.Message.RoomID, err)
	}
	return nil
}
