package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// GormPostRepository 是 PostRepository 接口的 GORM 实现
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository 创建 GormPostRepository 实例
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPostRepository")
	}
	return &GormPostRepository{db: db}
}

// Create 实现保存新帖子
func (r *GormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("gorm: create post: %w", err)
	}
	return nil
}

// FindByID 实现根据 ID 查找帖子
func (r *GormPostRepository) FindByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPostNotFound
		}
		return nil, fmt.Errorf("gorm: find post by id %d: %w", id, err)
	}
	return &post, nil
}

// List 实现按创建时间倒序返回帖子列表
func (r *GormPostRepository) List(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var posts []domain.Post
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list posts: %w", err)
	}
	return posts, nil
}

// Update 实现更新帖子
func (r *GormPostRepository) Update(ctx context.Context, post *domain.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return fmt.Errorf("gorm: update post %d: %w", post.ID, err)
	}
	return nil
}

// Delete 实现删除帖子（连带点赞记录）。幂等。
func (r *GormPostRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&domain.PostLike{}).Error; err != nil {
			return fmt.Errorf("gorm: delete likes for post %d: %w", id, err)
		}
		if err := tx.Delete(&domain.Post{}, id).Error; err != nil {
			return fmt.Errorf("gorm: delete post %d: %w", id, err)
		}
		return nil
	})
}

// LikeCount 实现读取帖子的点赞数量
func (r *GormPostRepository) LikeCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count likes for post %d: %w", postID, err)
	}
	return count, nil
}

// ToggleLike 实现切换点赞状态，返回切换后是否已点赞
func (r *GormPostRepository) ToggleLike(ctx context.Context, postID, uid uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like domain.PostLike
		err := tx.Where("post_id = ? AND uid = ?", postID, uid).First(&like).Error
		if err == nil {
			if err := tx.Delete(&like).Error; err != nil {
				return fmt.Errorf("gorm: delete like (post %d, uid %d): %w", postID, uid, err)
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("gorm: find like (post %d, uid %d): %w", postID, uid, err)
		}
		if err := tx.Create(&domain.PostLike{PostID: postID, UID: uid}).Error; err != nil {
			return fmt.Errorf("gorm: create like (post %d, uid %d): %w", postID, uid, err)
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}
