package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// ProfilePatch 是资料保存请求，nil 字段表示不修改。
type ProfilePatch struct {
	Nickname *string `json:"nickname"`
	Content  *string `json:"content"`
	Year     *int    `json:"year"`
	Age      *int    `json:"age"`
	Gender   *string `json:"gender"`
	Major    *string `json:"major"`
	MBTI     *string `json:"mbti"`
	FreeText *string `json:"freeText"`
	IsBot    *bool   `json:"isBot"`
}

// ProfileService 处理用户资料读写和在线心跳。
// 惩罚字段不在这里修改（见 PenaltyService）。
type ProfileService struct {
	userRepo     repository.UserRepository
	presenceRepo repository.PresenceRepository
}

// NewProfileService 创建 ProfileService 实例
func NewProfileService(userRepo repository.UserRepository, presenceRepo repository.PresenceRepository) *ProfileService {
	if userRepo == nil || presenceRepo == nil {
		panic("userRepo and presenceRepo cannot be nil for ProfileService")
	}
	return &ProfileService{userRepo: userRepo, presenceRepo: presenceRepo}
}

// Get 返回用户资料（密码哈希已抹除）
func (s *ProfileService) Get(ctx context.Context, uid uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile for user %d: %w", uid, err)
	}
	user.Password = ""
	return user, nil
}

// Save 应用资料补丁。昵称和自我介绍去除首尾空白。
func (s *ProfileService) Save(ctx context.Context, uid uint, patch ProfilePatch) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("save profile for user %d: %w", uid, err)
	}

	if patch.Nickname != nil {
		user.Nickname = strings.TrimSpace(*patch.Nickname)
	}
	if patch.Content != nil {
		user.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Year != nil {
		user.Year = patch.Year
	}
	if patch.Age != nil {
		user.Age = patch.Age
	}
	if patch.Gender != nil {
		user.Gender = patch.Gender
	}
	if patch.Major != nil {
		user.Major = patch.Major
	}
	if patch.MBTI != nil {
		user.MBTI = patch.MBTI
	}
	if patch.FreeText != nil {
		user.FreeText = strings.TrimSpace(*patch.FreeText)
	}
	if patch.IsBot != nil {
		user.IsBot = *patch.IsBot
	}

	// 只写资料列：读取与写回之间落地的惩罚事件不会被覆盖
	if err := s.userRepo.SaveProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("save profile for user %d: %w", uid, err)
	}
	user.Password = ""
	return user, nil
}

// Heartbeat 记录一次在线心跳
func (s *ProfileService) Heartbeat(ctx context.Context, uid uint) error {
	if err := s.presenceRepo.Heartbeat(ctx, uid, time.Now()); err != nil {
		return fmt.Errorf("heartbeat for user %d: %w", uid, err)
	}
	return nil
}
