package domain

import "time"

// Post 是社区帖子。编辑和删除仅限作者本人或管理员。
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"type:varchar(191);not null" json:"title"`
	Body          string    `gorm:"type:text;not null" json:"body"`
	AuthorUID     uint      `gorm:"index;not null" json:"authorUid"`
	AuthorEmail   string    `gorm:"type:varchar(191)" json:"authorEmail"`   // 权限判定用
	AuthorDisplay string    `gorm:"type:varchar(64)" json:"authorDisplay"`  // 展示名（匿名帖为 "익명"）
	IsAnonymous   bool      `gorm:"not null;default:false" json:"isAnonymous"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// PostLike 记录某用户对某帖子的点赞，(PostID, UID) 唯一。
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_like_post_uid;not null" json:"postId"`
	UID       uint      `gorm:"uniqueIndex:idx_like_post_uid;not null" json:"uid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
