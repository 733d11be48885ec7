package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// 违规事件类型。前两种累加违规分，第三种只扣"饭温"。
const (
	PenaltyEarlyDecline     = "early_decline"      // 邀请阶段拒绝
	PenaltyStartDecline     = "start_decline"      // 开始确认阶段投否决票
	PenaltyAfterStartCancel = "after_start_cancel" // 聊天开始后单方面退出
)

const (
	penaltyLimit    = 5
	banDuration     = time.Hour
	tempPenaltyStep = 3.0
)

// PenaltyStatus 是对外暴露的违规状态快照
type PenaltyStatus struct {
	PenaltyScore int        `json:"penalty_score"`
	HonbapTemp   float64    `json:"honbap_temp"`
	BannedUntil  *time.Time `json:"banned_until,omitempty"`
	RemainMillis int64      `json:"remain_millis"`
}

// PenaltyService 维护违规记账与禁用判定。
// 所有写入都经由 UserRepository 的行锁事务完成，并发事件按先后串行化。
type PenaltyService struct {
	userRepo repository.UserRepository
	logger   *logrus.Logger
}

// NewPenaltyService 创建 PenaltyService 实例
func NewPenaltyService(userRepo repository.UserRepository, logger *logrus.Logger) *PenaltyService {
	if userRepo == nil {
		panic("userRepo cannot be nil for PenaltyService")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PenaltyService{userRepo: userRepo, logger: logger}
}

// Status 返回用户当前的违规分、饭温与剩余禁用时间
func (s *PenaltyService) Status(ctx context.Context, uid uint) (*PenaltyStatus, error) {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("penalty status for user %d: %w", uid, err)
	}
	return &PenaltyStatus{
		PenaltyScore: user.PenaltyScore,
		HonbapTemp:   user.HonbapTemp,
		BannedUntil:  user.BannedUntil,
		RemainMillis: user.BannedRemaining(time.Now()).Milliseconds(),
	}, nil
}

// AssertNotBanned 在进入匹配等入口处调用。
// 处于禁用期时返回 UsageRestrictedError，剩余分钟数向上取整。
func (s *PenaltyService) AssertNotBanned(ctx context.Context, uid uint) error {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("check ban for user %d: %w", uid, err)
	}
	remain := user.BannedRemaining(time.Now())
	if remain <= 0 {
		return nil
	}
	return &UsageRestrictedError{
		Until:            *user.BannedUntil,
		RemainingMinutes: int(math.Ceil(remain.Minutes())),
	}
}

// Apply 记录一次违规事件并返回更新后的用户。
// 违规分达到上限时设置一小时禁用；禁用期内的新事件只累加分数，不顺延禁用。
func (s *PenaltyService) Apply(ctx context.Context, uid uint, kind string) (*domain.User, error) {
	switch kind {
	case PenaltyEarlyDecline, PenaltyStartDecline, PenaltyAfterStartCancel:
	default:
		return nil, fmt.Errorf("%w: unknown penalty kind %q", ErrValidation, kind)
	}

	now := time.Now()
	user, err := s.userRepo.UpdatePenaltyTx(ctx, uid, func(u *domain.User) error {
		switch kind {
		case PenaltyEarlyDecline, PenaltyStartDecline:
			u.PenaltyScore++
		case PenaltyAfterStartCancel:
			u.HonbapTemp -= tempPenaltyStep
			if u.HonbapTemp < 0 {
				u.HonbapTemp = 0
			}
		}
		if u.PenaltyScore >= penaltyLimit && u.BannedRemaining(now) <= 0 {
			until := now.Add(banDuration)
			u.BannedUntil = &until
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("apply penalty %s to user %d: %w", kind, uid, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": uid,
		"kind":    kind,
		"score":   user.PenaltyScore,
		"banned":  user.BannedUntil != nil && user.BannedUntil.After(now),
	}).Info("Penalty applied")
	return user, nil
}
