package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository/mocks"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/service"
)

// hookedUserRepo 在第一次 FindByID 返回后触发回调，
// 用于把并发事件插到资料保存的读取与写回之间。
type hookedUserRepo struct {
	*memUserRepo
	once      sync.Once
	afterFind func()
}

func (r *hookedUserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	u, err := r.memUserRepo.FindByID(ctx, id)
	if err == nil && r.afterFind != nil {
		r.once.Do(r.afterFind)
	}
	return u, err
}

func TestProfileService_Save_AppliesPatchAndTrims(t *testing.T) {
	users := newMemUserRepo()
	u := users.put(domain.User{Email: "a@kw.ac.kr", HonbapTemp: domain.DefaultHonbapTemp})
	svc := service.NewProfileService(users, new(mocks.PresenceRepository))
	ctx := context.Background()

	saved, err := svc.Save(ctx, u.ID, service.ProfilePatch{
		Nickname: strPtr("  김학생 "),
		Content:  strPtr(" 안녕하세요 "),
		Year:     intPtr(2023),
		FreeText: strPtr(" 월 수 금 "),
	})
	require.NoError(t, err)
	assert.Equal(t, "김학생", saved.Nickname)
	assert.Equal(t, "안녕하세요", saved.Content)
	require.NotNil(t, saved.Year)
	assert.Equal(t, 2023, *saved.Year)
	assert.Equal(t, "월 수 금", saved.FreeText)
	assert.Empty(t, saved.Password)

	// nil 字段保持不变
	saved, err = svc.Save(ctx, u.ID, service.ProfilePatch{Content: strPtr("새 소개")})
	require.NoError(t, err)
	assert.Equal(t, "김학생", saved.Nickname)
	assert.Equal(t, "새 소개", saved.Content)
}

func TestProfileService_Save_PreservesConcurrentPenalty(t *testing.T) {
	users := newMemUserRepo()
	u := users.put(domain.User{Email: "a@kw.ac.kr", PenaltyScore: 4, HonbapTemp: domain.DefaultHonbapTemp})
	penalty := newPenaltyService(users)
	ctx := context.Background()

	// 在资料保存读取用户之后、写回之前落地一次惩罚事件
	// （第 5 分触发禁用）
	hooked := &hookedUserRepo{memUserRepo: users}
	hooked.afterFind = func() {
		_, err := penalty.Apply(ctx, u.ID, service.PenaltyEarlyDecline)
		require.NoError(t, err)
	}
	svc := service.NewProfileService(hooked, new(mocks.PresenceRepository))

	saved, err := svc.Save(ctx, u.ID, service.ProfilePatch{Nickname: strPtr("김학생")})
	require.NoError(t, err)
	assert.Equal(t, "김학생", saved.Nickname)

	// 资料写回不得覆盖交错落地的惩罚分和禁用截止时间
	final, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "김학생", final.Nickname)
	assert.Equal(t, 5, final.PenaltyScore, "交错的惩罚分不应被资料保存覆盖")
	require.NotNil(t, final.BannedUntil, "交错设置的禁用不应被资料保存清除")
	assert.True(t, final.BannedUntil.After(time.Now()))
}

func TestProfileService_Heartbeat(t *testing.T) {
	users := newMemUserRepo()
	u := users.put(domain.User{Email: "a@kw.ac.kr"})
	presence := new(mocks.PresenceRepository)
	svc := service.NewProfileService(users, presence)

	presence.On("Heartbeat", mock.Anything, u.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	require.NoError(t, svc.Heartbeat(context.Background(), u.ID))
	presence.AssertExpectations(t)
}
