package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

const (
	matchTimeout    = 45 * time.Second // 整个匹配流程的等待上限
	onlineWindow    = 90 * time.Second // onlineOnly 过滤的活跃窗口
	queueScanLimit  = 25               // 每次扫描候选的上限（有界窗口）
	touchInterval   = 15 * time.Second // 等待期间刷新 lastActive 的间隔
	testBotGreeting = "테스트봇 연결 완료 ✅ 채팅 입력 테스트 해보세요."
)

// freeDayAlphabet 是空闲时间文本的有效符号集（星期一至星期日）。
var freeDayAlphabet = "월화수목금토일"

// MatchOptions 是发起匹配时勾选的过滤开关。
// 身份属性（年份/年龄/性别/专业/空闲时间）取自用户已保存的资料。
type MatchOptions struct {
	YearSame    bool `json:"yearSame"`
	AgeSame     bool `json:"ageSame"`
	GenderSame  bool `json:"genderSame"`
	MajorSame   bool `json:"majorSame"`
	FreeOverlap bool `json:"freeOverlap"`
	OnlineOnly  bool `json:"onlineOnly"`
}

// MatchingService 实现匹配队列的入队、扫描过滤和等待流程。
type MatchingService struct {
	queueRepo repository.QueueRepository
	userRepo  repository.UserRepository
	penalty   *PenaltyService
	rooms     *RoomService
	chat      *ChatService
	logger    *logrus.Logger
}

// NewMatchingService 创建 MatchingService 实例
func NewMatchingService(
	queueRepo repository.QueueRepository,
	userRepo repository.UserRepository,
	penalty *PenaltyService,
	rooms *RoomService,
	chat *ChatService,
	logger *logrus.Logger,
) *MatchingService {
	if queueRepo == nil || userRepo == nil || penalty == nil || rooms == nil || chat == nil {
		panic("all dependencies must be non-nil for MatchingService")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MatchingService{
		queueRepo: queueRepo,
		userRepo:  userRepo,
		penalty:   penalty,
		rooms:     rooms,
		chat:      chat,
		logger:    logger,
	}
}

// LeaveQueue 删除用户的全部队列条目。幂等。
func (s *MatchingService) LeaveQueue(ctx context.Context, uid uint) error {
	if err := s.queueRepo.DeleteByUID(ctx, uid); err != nil {
		return fmt.Errorf("leave queue for user %d: %w", uid, err)
	}
	return nil
}

// EnterQueue 用用户资料加上过滤开关构造一个新的队列条目并写入。
// 调用前必须先 LeaveQueue，保证同一用户最多只有一个条目。
func (s *MatchingService) EnterQueue(ctx context.Context, uid uint, opts MatchOptions) (*domain.QueueEntry, error) {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("enter queue for user %d: %w", uid, err)
	}

	now := time.Now()
	entry := &domain.QueueEntry{
		ID:         uuid.New().String(),
		UID:        uid,
		Email:      user.Email,
		CreatedAt:  now,
		LastActive: now,
		Status:     domain.QueueStatusWaiting,
		IsBot:      user.IsBot,
		Pref: domain.MatchPref{
			Year:        user.Year,
			Age:         user.Age,
			Gender:      user.Gender,
			Major:       user.Major,
			FreeText:    user.FreeText,
			YearSame:    opts.YearSame,
			AgeSame:     opts.AgeSame,
			GenderSame:  opts.GenderSame,
			MajorSame:   opts.MajorSame,
			FreeOverlap: opts.FreeOverlap,
			OnlineOnly:  opts.OnlineOnly,
		},
	}
	if err := s.queueRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("enter queue for user %d: %w", uid, err)
	}
	return entry, nil
}

// FindOpponent 扫描等待队列，返回第一个通过发起方过滤条件的候选。
// 过滤是单向的：只有发起方的开关决定是否跳过候选；候选方的开关
// 在它自己发起扫描时生效。没有候选时返回 (nil, nil)——无匹配不是错误。
func (s *MatchingService) FindOpponent(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	me, err := s.queueRepo.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEntryNotFound) {
			return nil, ErrQueueEntryNotFound
		}
		return nil, fmt.Errorf("find opponent: %w", err)
	}

	candidates, err := s.queueRepo.ListWaiting(ctx, queueScanLimit)
	if err != nil {
		return nil, fmt.Errorf("find opponent: %w", err)
	}

	now := time.Now()
	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == me.ID || cand.UID == me.UID {
			continue
		}
		if cand.Status != domain.QueueStatusWaiting {
			continue
		}
		if !prefAccepts(&me.Pref, cand, now) {
			continue
		}
		return cand, nil
	}
	return nil, nil
}

// prefAccepts 按 pref 的开关逐项检查候选条目。
// 相等性过滤要求双方属性都已填写；任一方为 NULL 即不通过。
func prefAccepts(pref *domain.MatchPref, cand *domain.QueueEntry, now time.Time) bool {
	if pref.OnlineOnly && now.Sub(cand.LastActive) > onlineWindow {
		return false
	}
	if pref.YearSame && !sameIntPtr(pref.Year, cand.Pref.Year) {
		return false
	}
	if pref.MajorSame && !sameStrPtr(pref.Major, cand.Pref.Major) {
		return false
	}
	if pref.AgeSame && !sameIntPtr(pref.Age, cand.Pref.Age) {
		return false
	}
	if pref.GenderSame && !sameStrPtr(pref.Gender, cand.Pref.Gender) {
		return false
	}
	if pref.FreeOverlap && !freeOverlap(pref.FreeText, cand.Pref.FreeText) {
		return false
	}
	return true
}

func sameIntPtr(a, b *int) bool {
	return a != nil && b != nil && *a == *b
}

func sameStrPtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// freeOverlap 报告两段空闲时间文本是否至少共享一个星期符号。
// 双方去除空白后都必须非空，否则视为无重叠。
func freeOverlap(a, b string) bool {
	a = stripSpace(a)
	b = stripSpace(b)
	if a == "" || b == "" {
		return false
	}
	for _, day := range freeDayAlphabet {
		if strings.ContainsRune(a, day) && strings.ContainsRune(b, day) {
			return true
		}
	}
	return false
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// StartMatching 执行完整的匹配流程：
// 禁用检查 → 清理旧条目 → 入队 → 扫描候选 → 命中则建房发邀请，
// 未命中则订阅自己的条目等待别人把我们匹配走。超时返回 ErrMatchTimeout，
// 条目保留在队列中，由调用方取消或由后台任务回收。
func (s *MatchingService) StartMatching(ctx context.Context, uid uint, opts MatchOptions) (string, error) {
	if err := s.penalty.AssertNotBanned(ctx, uid); err != nil {
		return "", err
	}
	if err := s.LeaveQueue(ctx, uid); err != nil {
		return "", err
	}
	entry, err := s.EnterQueue(ctx, uid, opts)
	if err != nil {
		return "", err
	}

	opp, err := s.FindOpponent(ctx, entry.ID)
	if err != nil {
		return "", err
	}
	if opp != nil {
		room, err := s.rooms.CreateRoomAndInvite(ctx, uid, entry.ID, opp.ID)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"user_id": uid,
				"room_id": room.ID,
				"opp_uid": opp.UID,
			}).Info("Match found")
			return room.ID, nil
		}
		// 候选在建房事务提交前被别人抢走：自己的条目仍是 waiting，
		// 退回等待路径。
		if !errors.Is(err, repository.ErrPreconditionFailed) {
			return "", err
		}
	}
	return s.waitForMatch(ctx, entry.ID)
}

// waitForMatch 订阅自己的队列条目，等待状态翻转为 matched。
// 等待期间周期性刷新 lastActive，让自己对 onlineOnly 的扫描方保持可见。
func (s *MatchingService) waitForMatch(ctx context.Context, entryID string) (string, error) {
	updates, stop, err := s.queueRepo.Subscribe(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("wait for match: %w", err)
	}
	defer stop()

	// 订阅建立后补读一次当前状态，避免漏掉订阅前的翻转
	if cur, err := s.queueRepo.Get(ctx, entryID); err == nil {
		if cur.Status == domain.QueueStatusMatched && cur.RoomID != "" {
			return cur.RoomID, nil
		}
	}

	timer := time.NewTimer(matchTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(touchInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-updates:
			if !ok {
				return "", ErrMatchTimeout
			}
			if entry.Status == domain.QueueStatusMatched && entry.RoomID != "" {
				return entry.RoomID, nil
			}
		case <-ticker.C:
			s.touch(ctx, entryID)
		case <-timer.C:
			return "", ErrMatchTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// touch 刷新条目的 lastActive。条目可能已被对方翻转，必须走事务读-改-写。
func (s *MatchingService) touch(ctx context.Context, entryID string) {
	_, err := s.queueRepo.UpdateTx(ctx, entryID, func(e *domain.QueueEntry) (bool, error) {
		if e.Status != domain.QueueStatusWaiting {
			return false, nil
		}
		e.LastActive = time.Now()
		return true, nil
	})
	if err != nil && !errors.Is(err, repository.ErrQueueEntryNotFound) {
		s.logger.WithError(err).WithField("entry_id", entryID).Warn("Failed to touch queue entry")
	}
}

// CancelMatching 主动退出匹配队列。
func (s *MatchingService) CancelMatching(ctx context.Context, uid uint) error {
	return s.LeaveQueue(ctx, uid)
}

// MarkLeaving 把用户的条目标记为 leaving（页面关闭前的尽力提示）。
// 没有条目时静默返回。
func (s *MatchingService) MarkLeaving(ctx context.Context, uid uint) error {
	entries, err := s.queueRepo.FindByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("mark leaving for user %d: %w", uid, err)
	}
	for _, e := range entries {
		_, err := s.queueRepo.UpdateTx(ctx, e.ID, func(entry *domain.QueueEntry) (bool, error) {
			if entry.Status == domain.QueueStatusMatched {
				return false, nil
			}
			entry.Status = domain.QueueStatusLeaving
			entry.LastActive = time.Now()
			return true, nil
		})
		if err != nil && !errors.Is(err, repository.ErrQueueEntryNotFound) {
			return fmt.Errorf("mark leaving for user %d: %w", uid, err)
		}
	}
	return nil
}

// StartWithTestBot 跳过队列，直接创建一个与测试机器人的聊天房间。
// 房间落地后机器人发送一条问候消息。
func (s *MatchingService) StartWithTestBot(ctx context.Context, uid uint) (string, error) {
	if err := s.penalty.AssertNotBanned(ctx, uid); err != nil {
		return "", err
	}
	if err := s.LeaveQueue(ctx, uid); err != nil {
		return "", err
	}

	now := time.Now()
	room := &domain.Room{
		ID:              uuid.New().String(),
		Members:         []uint{uid, domain.TestBotUID},
		ExpectedMembers: []uint{uid, domain.TestBotUID},
		CreatedAt:       now,
		Phase:           domain.PhaseChatting,
		UpdatedAt:       now,
	}
	if err := s.rooms.roomRepo.Create(ctx, room); err != nil {
		return "", fmt.Errorf("create test bot room for user %d: %w", uid, err)
	}
	if err := s.chat.Send(ctx, domain.TestBotUID, "bot", room.ID, testBotGreeting); err != nil {
		s.logger.WithError(err).WithField("room_id", room.ID).Warn("Failed to send bot greeting")
	}
	s.logger.WithFields(logrus.Fields{"user_id": uid, "room_id": room.ID}).Info("Test bot room created")
	return room.ID, nil
}
