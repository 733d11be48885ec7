package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/tasks"
)

type fixture struct {
	users    *memUserRepo
	queue    *memQueueRepo
	rooms    *memRoomRepo
	msgs     *memMessageRepo
	taskCli  *fakeTaskClient
	matching *service.MatchingService
	roomSvc  *service.RoomService
	chatSvc  *service.ChatService
	penalty  *service.PenaltyService
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	users := newMemUserRepo()
	queue := newMemQueueRepo()
	rooms := newMemRoomRepo(queue)
	msgs := &memMessageRepo{}
	taskCli := &fakeTaskClient{}

	penalty := service.NewPenaltyService(users, logger)
	roomSvc := service.NewRoomService(rooms, queue, logger)
	chatSvc := service.NewChatService(rooms, msgs, taskCli, logger)
	matching := service.NewMatchingService(queue, users, penalty, roomSvc, chatSvc, logger)

	return &fixture{
		users: users, queue: queue, rooms: rooms, msgs: msgs, taskCli: taskCli,
		matching: matching, roomSvc: roomSvc, chatSvc: chatSvc, penalty: penalty,
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// seedEntry 直接向队列写入一个等待中的条目
func seedEntry(t *testing.T, f *fixture, uid uint, createdAt time.Time, pref domain.MatchPref) *domain.QueueEntry {
	t.Helper()
	entry := &domain.QueueEntry{
		ID:         uuid.New().String(),
		UID:        uid,
		CreatedAt:  createdAt,
		LastActive: time.Now(),
		Status:     domain.QueueStatusWaiting,
		Pref:       pref,
	}
	require.NoError(t, f.queue.Create(context.Background(), entry))
	return entry
}

func TestMatchingService_FindOpponent_OldestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	me := seedEntry(t, f, 1, now, domain.MatchPref{})
	seedEntry(t, f, 2, now.Add(-1*time.Minute), domain.MatchPref{})
	oldest := seedEntry(t, f, 3, now.Add(-5*time.Minute), domain.MatchPref{})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, oldest.ID, found.ID, "应优先匹配等待最久的候选")
}

func TestMatchingService_FindOpponent_SkipsSelfAndSameUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	me := seedEntry(t, f, 1, now, domain.MatchPref{})
	// 同一用户的孤儿条目不应与自己匹配
	seedEntry(t, f, 1, now.Add(-time.Minute), domain.MatchPref{})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMatchingService_FindOpponent_EqualityFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	me := seedEntry(t, f, 1, now, domain.MatchPref{
		Year: intPtr(2023), Major: strPtr("CS"), YearSame: true, MajorSame: true,
	})
	// 年份不同 → 不匹配
	seedEntry(t, f, 2, now.Add(-3*time.Minute), domain.MatchPref{Year: intPtr(2022), Major: strPtr("CS")})
	// 年份未填写 → 相等性过滤不通过
	seedEntry(t, f, 3, now.Add(-2*time.Minute), domain.MatchPref{Major: strPtr("CS")})
	// 双方条件都满足
	match := seedEntry(t, f, 4, now.Add(-1*time.Minute), domain.MatchPref{Year: intPtr(2023), Major: strPtr("CS")})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, match.ID, found.ID)
}

func TestMatchingService_FindOpponent_FilterIsUnilateral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	// 过滤只看发起方的开关：候选自己开了性别过滤、而我未填写性别，
	// 也不影响我的扫描命中它
	me := seedEntry(t, f, 1, now, domain.MatchPref{})
	cand := seedEntry(t, f, 2, now.Add(-time.Minute), domain.MatchPref{
		Gender: strPtr("F"), GenderSame: true,
	})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found, "候选方的开关不应拦下发起方的扫描")
	assert.Equal(t, cand.ID, found.ID)
}

func TestMatchingService_FindOpponent_FreeOverlap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	me := seedEntry(t, f, 1, now, domain.MatchPref{FreeText: "월 수 금", FreeOverlap: true})
	// 无共同星期
	seedEntry(t, f, 2, now.Add(-3*time.Minute), domain.MatchPref{FreeText: "화목"})
	// 空白文本视为无重叠
	seedEntry(t, f, 3, now.Add(-2*time.Minute), domain.MatchPref{FreeText: "   "})
	// "수" 重叠
	match := seedEntry(t, f, 4, now.Add(-1*time.Minute), domain.MatchPref{FreeText: "수토"})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, match.ID, found.ID)
}

func TestMatchingService_FindOpponent_OnlineOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	me := seedEntry(t, f, 1, now, domain.MatchPref{OnlineOnly: true})
	stale := seedEntry(t, f, 2, now.Add(-10*time.Minute), domain.MatchPref{})
	// 心跳早于 90 秒窗口
	_, err := f.queue.UpdateTx(ctx, stale.ID, func(e *domain.QueueEntry) (bool, error) {
		e.LastActive = now.Add(-5 * time.Minute)
		return true, nil
	})
	require.NoError(t, err)
	fresh := seedEntry(t, f, 3, now.Add(-1*time.Minute), domain.MatchPref{})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, fresh.ID, found.ID)
}

func TestMatchingService_FindOpponent_MatchedEntriesFreeTheScanWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()

	// 26 个更早入队的条目先互相配对完毕，不应继续占用 25 条的扫描窗口
	for i := 0; i < 13; i++ {
		a := seedEntry(t, f, uint(100+2*i), now.Add(-time.Hour), domain.MatchPref{})
		b := seedEntry(t, f, uint(101+2*i), now.Add(-time.Hour), domain.MatchPref{})
		_, err := f.roomSvc.CreateRoomAndInvite(ctx, a.UID, a.ID, b.ID)
		require.NoError(t, err)
	}

	cand := seedEntry(t, f, 2, now.Add(-time.Minute), domain.MatchPref{})
	me := seedEntry(t, f, 1, now, domain.MatchPref{})

	found, err := f.matching.FindOpponent(ctx, me.ID)
	require.NoError(t, err)
	require.NotNil(t, found, "已匹配的历史条目不应挤占等待窗口")
	assert.Equal(t, cand.ID, found.ID)
}

func TestMatchingService_StartMatching_ImmediateMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	alice := f.users.put(domain.User{Email: "alice@kw.ac.kr"})
	bobEntry := seedEntry(t, f, 99, time.Now().Add(-time.Minute), domain.MatchPref{})

	roomID, err := f.matching.StartMatching(ctx, alice.ID, service.MatchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	// 房间处于邀请阶段，邀请指向对方的队列条目
	room, err := f.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePendingAccept, room.Phase)
	assert.ElementsMatch(t, []uint{alice.ID, 99}, room.ExpectedMembers)
	assert.Equal(t, []uint{alice.ID}, room.Members)
	require.NotNil(t, room.Invite)
	assert.Equal(t, bobEntry.ID, room.Invite.To)

	// 双方条目都被翻转为 matched 且指向房间
	opp, err := f.queue.Get(ctx, bobEntry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusMatched, opp.Status)
	assert.Equal(t, roomID, opp.RoomID)
}

func TestMatchingService_StartMatching_MatchedWhileWaiting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.users.put(domain.User{Email: "alice@kw.ac.kr"})

	type result struct {
		roomID string
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		roomID, err := f.matching.StartMatching(ctx, alice.ID, service.MatchOptions{})
		resCh <- result{roomID, err}
	}()

	// 等 Alice 的条目出现后，模拟对方把她匹配走
	var entryID string
	require.Eventually(t, func() bool {
		entries, _ := f.queue.FindByUID(ctx, alice.ID)
		if len(entries) == 1 {
			entryID = entries[0].ID
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	_, err := f.queue.UpdateTx(ctx, entryID, func(e *domain.QueueEntry) (bool, error) {
		e.Status = domain.QueueStatusMatched
		e.RoomID = "room-from-peer"
		return true, nil
	})
	require.NoError(t, err)

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, "room-from-peer", res.roomID)
	case <-time.After(2 * time.Second):
		t.Fatal("StartMatching 未在对方匹配后及时返回")
	}
}

func TestMatchingService_StartMatching_BannedUserRejected(t *testing.T) {
	f := newFixture()
	until := time.Now().Add(time.Hour)
	banned := f.users.put(domain.User{Email: "banned@kw.ac.kr", BannedUntil: &until})

	_, err := f.matching.StartMatching(context.Background(), banned.ID, service.MatchOptions{})
	require.Error(t, err)
	var restricted *service.UsageRestrictedError
	assert.True(t, errors.As(err, &restricted))

	// 禁用用户不应留下队列条目
	entries, _ := f.queue.FindByUID(context.Background(), banned.ID)
	assert.Empty(t, entries)
}

func TestMatchingService_EnterQueue_ReplacesOldEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.users.put(domain.User{Email: "alice@kw.ac.kr", Year: intPtr(2023)})

	require.NoError(t, f.matching.LeaveQueue(ctx, alice.ID))
	first, err := f.matching.EnterQueue(ctx, alice.ID, service.MatchOptions{YearSame: true})
	require.NoError(t, err)
	assert.True(t, first.Pref.YearSame)
	require.NotNil(t, first.Pref.Year)
	assert.Equal(t, 2023, *first.Pref.Year)

	// 重新入队前先清理，同一用户最多一个条目
	require.NoError(t, f.matching.LeaveQueue(ctx, alice.ID))
	_, err = f.matching.EnterQueue(ctx, alice.ID, service.MatchOptions{})
	require.NoError(t, err)

	entries, err := f.queue.FindByUID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMatchingService_MarkLeaving(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.users.put(domain.User{Email: "alice@kw.ac.kr"})
	entry, err := f.matching.EnterQueue(ctx, alice.ID, service.MatchOptions{})
	require.NoError(t, err)

	require.NoError(t, f.matching.MarkLeaving(ctx, alice.ID))
	got, err := f.queue.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusLeaving, got.Status)

	// 没有条目时静默成功
	assert.NoError(t, f.matching.MarkLeaving(ctx, 12345))
}

func TestMatchingService_StartWithTestBot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.users.put(domain.User{Email: "alice@kw.ac.kr"})

	roomID, err := f.matching.StartWithTestBot(ctx, alice.ID)
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	room, err := f.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseChatting, room.Phase)
	assert.ElementsMatch(t, []uint{alice.ID, domain.TestBotUID}, room.ExpectedMembers)

	// 机器人问候已扇出并排队等待持久化
	require.Len(t, f.rooms.published, 1)
	assert.Equal(t, domain.TestBotUID, f.rooms.published[0].UID)
	assert.Contains(t, f.taskCli.taskTypes(), tasks.TypeMessagePersist)
}
