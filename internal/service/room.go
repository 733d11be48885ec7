package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

const (
	inviteWaitDefault    = 30 * time.Second // 等待对方响应邀请的默认上限
	startWaitDefault     = 30 * time.Second // 等待开始投票结果的默认上限
	phaseRecheckInterval = 2 * time.Second  // 等待期间兜底重读房间状态的间隔
)

// RoomService 实现房间生命周期状态机：
// pendingAccept → (declined | startCheck) → (startDeclined | chatting) → ended。
// 所有状态转移都在存储层事务内计算，终态吸收一切迟到的操作。
type RoomService struct {
	roomRepo  repository.RoomRepository
	queueRepo repository.QueueRepository
	logger    *logrus.Logger
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(roomRepo repository.RoomRepository, queueRepo repository.QueueRepository, logger *logrus.Logger) *RoomService {
	if roomRepo == nil || queueRepo == nil {
		panic("roomRepo and queueRepo cannot be nil for RoomService")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RoomService{roomRepo: roomRepo, queueRepo: queueRepo, logger: logger}
}

// FindRoom 读取房间文档。
func (s *RoomService) FindRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room %s: %w", roomID, err)
	}
	return room, nil
}

// CreateRoomAndInvite 为一对匹配成功的用户创建房间并向对方发出邀请。
// 房间写入和两个队列条目的状态翻转在同一个事务中完成；
// 对方条目在提交前被别人匹配走时返回 repository.ErrPreconditionFailed。
func (s *RoomService) CreateRoomAndInvite(ctx context.Context, uid uint, myEntryID, oppEntryID string) (*domain.Room, error) {
	opp, err := s.queueRepo.Get(ctx, oppEntryID)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEntryNotFound) {
			return nil, repository.ErrPreconditionFailed
		}
		return nil, fmt.Errorf("create room: read opponent entry: %w", err)
	}

	now := time.Now()
	room := &domain.Room{
		ID:              uuid.New().String(),
		Members:         []uint{uid},
		ExpectedMembers: domain.AddUnique([]uint{uid}, opp.UID),
		CreatedAt:       now,
		Phase:           domain.PhasePendingAccept,
		Invite: &domain.Invite{
			To: oppEntryID,
			At: now,
		},
		UpdatedAt: now,
	}
	if err := s.roomRepo.CreateForMatch(ctx, room, myEntryID, oppEntryID); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, repository.ErrPreconditionFailed
		}
		return nil, fmt.Errorf("create room for match: %w", err)
	}
	return room, nil
}

// AcceptOrDecline 处理邀请阶段的响应。
// 接受：加入 Members，目标成员到齐后推进到 startCheck。
// 拒绝：单方面推进到 declined（终态）。
// 房间已离开 pendingAccept 阶段时的迟到响应被静默吸收。
func (s *RoomService) AcceptOrDecline(ctx context.Context, uid uint, roomID string, accept bool) error {
	room, err := s.roomRepo.UpdateTx(ctx, roomID, func(r *domain.Room) (bool, error) {
		if !r.HasMember(uid) {
			return false, ErrNotRoomMember
		}
		if r.Phase != domain.PhasePendingAccept {
			return false, nil
		}
		if r.Invite != nil {
			r.Invite.Accepted = &accept
		}
		// 无论接受与否，响应者都计入在场成员（拒绝后还要走离开流程）
		r.Members = domain.AddUnique(r.Members, uid)
		if !accept {
			r.Phase = domain.PhaseDeclined
		} else if domain.ContainsAll(r.Members, r.TargetMembers()) {
			r.Phase = domain.PhaseStartCheck
		}
		r.UpdatedAt = time.Now()
		return true, nil
	})
	if err != nil {
		return s.mapRoomErr(err, roomID)
	}
	s.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": uid,
		"accept":  accept,
		"phase":   room.Phase,
	}).Info("Invite response recorded")
	return nil
}

// StartYesOrNo 处理开始确认阶段的投票。
// 目标成员全部投票后结算：全票赞成推进到 chatting，否则 startDeclined。
// 非 startCheck 阶段的迟到投票被静默吸收。
func (s *RoomService) StartYesOrNo(ctx context.Context, uid uint, roomID string, yes bool) error {
	room, err := s.roomRepo.UpdateTx(ctx, roomID, func(r *domain.Room) (bool, error) {
		if !r.HasMember(uid) {
			return false, ErrNotRoomMember
		}
		if r.Phase != domain.PhaseStartCheck {
			return false, nil
		}
		r.StartVoted = domain.AddUnique(r.StartVoted, uid)
		if yes {
			r.StartYes = domain.AddUnique(r.StartYes, uid)
		}
		target := r.TargetMembers()
		if domain.ContainsAll(r.StartVoted, target) {
			if domain.ContainsAll(r.StartYes, target) {
				r.Phase = domain.PhaseChatting
			} else {
				r.Phase = domain.PhaseStartDeclined
			}
		}
		r.UpdatedAt = time.Now()
		return true, nil
	})
	if err != nil {
		return s.mapRoomErr(err, roomID)
	}
	s.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": uid,
		"yes":     yes,
		"phase":   room.Phase,
	}).Info("Start vote recorded")
	return nil
}

// LeaveRoom 把用户移出房间成员集合，最后一人离开时房间推进到 ended。
// 随后清理该用户残留的队列条目。房间不存在时静默返回。
func (s *RoomService) LeaveRoom(ctx context.Context, uid uint, roomID string) error {
	_, err := s.roomRepo.UpdateTx(ctx, roomID, func(r *domain.Room) (bool, error) {
		members := domain.RemoveUID(r.Members, uid)
		if len(members) == len(r.Members) && r.Phase.Terminal() {
			return false, nil
		}
		r.Members = members
		if len(r.Members) == 0 {
			r.Phase = domain.PhaseEnded
		}
		r.UpdatedAt = time.Now()
		return true, nil
	})
	if err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	if err := s.queueRepo.DeleteByUID(ctx, uid); err != nil {
		s.logger.WithError(err).WithField("user_id", uid).Warn("Failed to clean queue entries on leave")
	}
	return nil
}

// WaitInviteDecision 等待邀请阶段的结果。返回 true 表示双方都已接受
// （房间已推进到 startCheck 或更远），false 表示被拒绝或等待超时。
func (s *RoomService) WaitInviteDecision(ctx context.Context, roomID string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = inviteWaitDefault
	}
	return s.waitPhase(ctx, roomID, timeout, func(p domain.RoomPhase) (bool, bool) {
		switch p {
		case domain.PhaseStartCheck, domain.PhaseStartDeclined, domain.PhaseChatting:
			return true, true
		case domain.PhaseDeclined, domain.PhaseEnded:
			return false, true
		}
		return false, false
	})
}

// WaitStartDecision 等待开始确认阶段的结果。返回 true 表示全票通过
// （房间已推进到 chatting），false 表示被否决或等待超时。
func (s *RoomService) WaitStartDecision(ctx context.Context, roomID string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = startWaitDefault
	}
	return s.waitPhase(ctx, roomID, timeout, func(p domain.RoomPhase) (bool, bool) {
		switch p {
		case domain.PhaseChatting:
			return true, true
		case domain.PhaseDeclined, domain.PhaseStartDeclined, domain.PhaseEnded:
			return false, true
		}
		return false, false
	})
}

// waitPhase 先订阅再补读当前状态，保证不漏掉订阅建立前的转移。
// 订阅通道缓冲耗尽时快照可能被丢弃，所以等待期间还会按固定间隔
// 兜底重读一次房间状态，丢失事件最多把结算推迟一个间隔而不是到超时。
// decide 对每个观察到的阶段给出 (结果, 是否结束等待)。超时视为否定结果。
func (s *RoomService) waitPhase(ctx context.Context, roomID string, timeout time.Duration, decide func(domain.RoomPhase) (bool, bool)) (bool, error) {
	updates, stop, err := s.roomRepo.Subscribe(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("wait on room %s: %w", roomID, err)
	}
	defer stop()

	if room, err := s.roomRepo.Get(ctx, roomID); err == nil {
		if ok, done := decide(room.Phase); done {
			return ok, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	recheck := time.NewTicker(phaseRecheckInterval)
	defer recheck.Stop()
	for {
		select {
		case room, open := <-updates:
			if !open {
				return false, nil
			}
			if ok, done := decide(room.Phase); done {
				return ok, nil
			}
		case <-recheck.C:
			if room, err := s.roomRepo.Get(ctx, roomID); err == nil {
				if ok, done := decide(room.Phase); done {
					return ok, nil
				}
			}
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (s *RoomService) mapRoomErr(err error, roomID string) error {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, ErrNotRoomMember):
		return ErrNotRoomMember
	}
	return fmt.Errorf("update room %s: %w", roomID, err)
}
