package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

const anonymousDisplay = "익명"

// PostService 处理社区帖子的增删改查和点赞。
// 编辑和删除仅限作者本人或管理员。
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	auth     *AuthService
}

// NewPostService 创建 PostService 实例
func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, auth *AuthService) *PostService {
	if postRepo == nil || userRepo == nil || auth == nil {
		panic("postRepo, userRepo and auth cannot be nil for PostService")
	}
	return &PostService{postRepo: postRepo, userRepo: userRepo, auth: auth}
}

// Create 发布一篇帖子。匿名帖的展示名固定为 "익명"，
// 否则使用昵称，昵称为空时退回邮箱本地部分。
func (s *PostService) Create(ctx context.Context, uid uint, title, body string, anonymous bool) (*domain.Post, error) {
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	post := &domain.Post{
		Title:         strings.TrimSpace(title),
		Body:          strings.TrimSpace(body),
		AuthorUID:     uid,
		AuthorEmail:   user.Email,
		AuthorDisplay: displayName(user, anonymous),
		IsAnonymous:   anonymous,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// List 按创建时间倒序返回帖子列表
func (s *PostService) List(ctx context.Context, limit int) ([]domain.Post, error) {
	posts, err := s.postRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Update 修改帖子的标题和正文。nil 字段保持不变。
func (s *PostService) Update(ctx context.Context, uid uint, postID uint, title, body *string) (*domain.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, fmt.Errorf("%w: post %d", ErrValidation, postID)
		}
		return nil, fmt.Errorf("update post %d: %w", postID, err)
	}
	if err := s.assertCanModify(ctx, uid, post); err != nil {
		return nil, err
	}
	if title != nil {
		post.Title = strings.TrimSpace(*title)
	}
	if body != nil {
		post.Body = strings.TrimSpace(*body)
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update post %d: %w", postID, err)
	}
	return post, nil
}

// Delete 删除帖子。帖子不存在时静默返回。
func (s *PostService) Delete(ctx context.Context, uid uint, postID uint) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil
		}
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	if err := s.assertCanModify(ctx, uid, post); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	return nil
}

// LikeCount 返回帖子的点赞数
func (s *PostService) LikeCount(ctx context.Context, postID uint) (int64, error) {
	count, err := s.postRepo.LikeCount(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("like count for post %d: %w", postID, err)
	}
	return count, nil
}

// ToggleLike 切换当前用户对帖子的点赞状态，返回切换后是否已点赞
func (s *PostService) ToggleLike(ctx context.Context, uid uint, postID uint) (bool, error) {
	liked, err := s.postRepo.ToggleLike(ctx, postID, uid)
	if err != nil {
		return false, fmt.Errorf("toggle like for post %d: %w", postID, err)
	}
	return liked, nil
}

func (s *PostService) assertCanModify(ctx context.Context, uid uint, post *domain.Post) error {
	if post.AuthorUID == uid {
		return nil
	}
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrPermissionDenied
		}
		return fmt.Errorf("check post permission: %w", err)
	}
	if s.auth.IsAdminEmail(user.Email) {
		return nil
	}
	return ErrPermissionDenied
}

func displayName(user *domain.User, anonymous bool) string {
	if anonymous {
		return anonymousDisplay
	}
	if user.Nickname != "" {
		return user.Nickname
	}
	if at := strings.IndexByte(user.Email, '@'); at > 0 {
		return user.Email[:at]
	}
	return anonymousDisplay
}
