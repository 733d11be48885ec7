package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/tasks"
)

const recentMessagesLimit = 200

// TaskClient 抽象任务队列客户端，*asynq.Client 满足该接口。
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ChatService 实现房间内的消息发送与历史读取。
// 消息先发布到房间频道（实时扇出），持久化由后台任务异步完成。
type ChatService struct {
	roomRepo   repository.RoomRepository
	msgRepo    repository.MessageRepository
	taskClient TaskClient
	logger     *logrus.Logger
}

// NewChatService 创建 ChatService 实例
func NewChatService(roomRepo repository.RoomRepository, msgRepo repository.MessageRepository, taskClient TaskClient, logger *logrus.Logger) *ChatService {
	if roomRepo == nil || msgRepo == nil || taskClient == nil {
		panic("roomRepo, msgRepo and taskClient cannot be nil for ChatService")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatService{roomRepo: roomRepo, msgRepo: msgRepo, taskClient: taskClient, logger: logger}
}

// AssertMember 校验用户属于房间的目标成员集合，返回房间文档。
func (s *ChatService) AssertMember(ctx context.Context, uid uint, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("assert member of room %s: %w", roomID, err)
	}
	if !room.HasMember(uid) {
		return nil, ErrNotRoomMember
	}
	return room, nil
}

// Send 向房间发送一条消息。正文去除首尾空白后为空时静默忽略。
// 发布到房间频道是同步的；写入 MySQL 通过任务队列异步完成，
// 入队失败只记日志，不影响已经扇出的实时消息。
func (s *ChatService) Send(ctx context.Context, uid uint, email, roomID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if _, err := s.AssertMember(ctx, uid, roomID); err != nil {
		return err
	}

	msg := domain.Message{
		RoomID:    roomID,
		UID:       uid,
		Email:     email,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.roomRepo.PublishMessage(ctx, roomID, msg); err != nil {
		return fmt.Errorf("publish message to room %s: %w", roomID, err)
	}

	task, err := tasks.NewMessagePersistTask(msg)
	if err != nil {
		s.logger.WithError(err).WithField("room_id", roomID).Error("Failed to build persist task")
		return nil
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		s.logger.WithError(err).WithField("room_id", roomID).Error("Failed to enqueue persist task")
	}
	return nil
}

// Recent 返回房间最近的消息（升序），仅限房间成员读取。
func (s *ChatService) Recent(ctx context.Context, uid uint, roomID string) ([]domain.Message, error) {
	if _, err := s.AssertMember(ctx, uid, roomID); err != nil {
		return nil, err
	}
	msgs, err := s.msgRepo.Recent(ctx, roomID, recentMessagesLimit)
	if err != nil {
		return nil, fmt.Errorf("recent messages for room %s: %w", roomID, err)
	}
	return msgs, nil
}

// StreamMessages 订阅房间消息频道。调用方负责在退出时调用取消函数。
// 成员资格由调用方（WebSocket 握手）预先校验。
func (s *ChatService) StreamMessages(ctx context.Context, roomID string) (<-chan domain.Message, func(), error) {
	return s.roomRepo.SubscribeMessages(ctx, roomID)
}
