package setup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// MigrateDB 自动迁移持久化实体对应的表结构。
// 队列条目和房间文档存储在 Redis，不在迁移范围内。
func MigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.Post{},
		&domain.PostLike{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
