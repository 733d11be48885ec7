package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// SaveBatch 实现批量保存消息
func (r *GormMessageRepository) SaveBatch(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return fmt.Errorf("gorm: save message batch (size %d): %w", len(msgs), err)
	}
	return nil
}

// Recent 实现读取房间最近 limit 条消息，按时间升序返回。
// 先倒序取最近 limit 条，再反转为升序（与消息流的展示顺序一致）。
func (r *GormMessageRepository) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find recent messages for room %s: %w", roomID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
