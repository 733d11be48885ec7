// Package tasks 定义了后台任务的类型常量和载荷构造函数。
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

const (
	// TypeMessagePersist 把一条已扇出的聊天消息写入 MySQL
	TypeMessagePersist = "message:persist"
	// TypeQueueJanitor 周期性回收过期的队列条目和滞留的房间
	TypeQueueJanitor = "queue:janitor"
)

// MessagePersistPayload 是 TypeMessagePersist 任务的载荷
type MessagePersistPayload struct {
	Message domain.Message `json:"message"`
}

// NewMessagePersistTask 创建一个消息持久化任务
func NewMessagePersistTask(msg domain.Message) (*asynq.Task, error) {
	payload, err := json.Marshal(MessagePersistPayload{Message: msg})
	if err != nil {
		return nil, fmt.Errorf("marshal message persist payload: %w", err)
	}
	return asynq.NewTask(TypeMessagePersist, payload), nil
}

// NewQueueJanitorTask 创建一个清理任务（无载荷）
func NewQueueJanitorTask() *asynq.Task {
	return asynq.NewTask(TypeQueueJanitor, nil)
}
