package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

const (
	staleEntryAge   = 15 * time.Minute // 心跳停止多久后的队列条目算作残留
	stuckRoomAge    = 10 * time.Minute // 同意阶段滞留多久后的房间被强制终结
	janitorRoomScan = 200              // 单次清理扫描的房间上限
)

// JanitorHandler 周期性回收过期的队列条目和滞留在同意阶段的房间。
// 清理是尽力而为的：单个房间的失败不中断整轮任务。
type JanitorHandler struct {
	queueRepo repository.QueueRepository
	roomRepo  repository.RoomRepository
}

// NewJanitorHandler 创建 Handler 实例
func NewJanitorHandler(queueRepo repository.QueueRepository, roomRepo repository.RoomRepository) *JanitorHandler {
	return &JanitorHandler{queueRepo: queueRepo, roomRepo: roomRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *JanitorHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := logrus.WithField("component", "janitor")
	now := time.Now()

	removed, err := h.queueRepo.DeleteStale(ctx, now.Add(-staleEntryAge))
	if err != nil {
		log.WithError(err).Error("Failed to delete stale queue entries")
	} else if removed > 0 {
		log.WithField("removed", removed).Info("Stale queue entries removed")
	}

	roomIDs, err := h.roomRepo.ListCreatedBefore(ctx, now.Add(-stuckRoomAge), janitorRoomScan)
	if err != nil {
		log.WithError(err).Error("Failed to list old rooms")
		return nil
	}

	ended := 0
	for _, id := range roomIDs {
		room, err := h.roomRepo.UpdateTx(ctx, id, func(r *domain.Room) (bool, error) {
			// 只终结滞留在同意阶段的房间，进行中的聊天不受影响
			if r.Phase == domain.PhasePendingAccept || r.Phase == domain.PhaseStartCheck {
				r.Phase = domain.PhaseEnded
				r.UpdatedAt = time.Now()
				return true, nil
			}
			return false, nil
		})
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				// 文档已消失，把悬挂的索引项一并清掉
				_ = h.roomRepo.RemoveFromIndex(ctx, id)
			} else {
				log.WithError(err).WithField("room_id", id).Warn("Failed to sweep room")
			}
			continue
		}
		if room.Phase.Terminal() {
			if err := h.roomRepo.RemoveFromIndex(ctx, id); err != nil {
				log.WithError(err).WithField("room_id", id).Warn("Failed to remove room from sweep index")
			} else {
				ended++
			}
		}
	}
	if ended > 0 {
		log.WithField("rooms", ended).Info("Stuck rooms swept")
	}
	return nil
}
