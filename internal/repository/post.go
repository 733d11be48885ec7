package repository

import (
	"context"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// PostRepository 定义了社区帖子的存储操作。
type PostRepository interface {
	// Create 保存新帖子。
	Create(ctx context.Context, post *domain.Post) error

	// FindByID 根据 ID 查找帖子。不存在时返回 ErrPostNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Post, error)

	// List 按创建时间倒序返回至多 limit 个帖子。
	List(ctx context.Context, limit int) ([]domain.Post, error)

	// Update 更新帖子的标题/正文（权限判定由服务层负责）。
	Update(ctx context.Context, post *domain.Post) error

	// Delete 删除帖子。幂等：不存在时不报错。
	Delete(ctx context.Context, id uint) error

	// LikeCount 返回帖子的点赞数量。
	LikeCount(ctx context.Context, postID uint) (int64, error)

	// ToggleLike 切换某用户对帖子的点赞状态，返回切换后是否已点赞。
	ToggleLike(ctx context.Context, postID, uid uint) (bool, error)
}
