// Package gormpersistence 提供用户/消息/帖子等持久化实体的 GORM 实现。
package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByID 实现根据用户 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by id %d: %w", id, err)
	}
	return &user, nil
}

// FindByEmail 实现根据邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by email '%s': %w", email, err)
	}
	return &user, nil
}

// Save 实现保存用户信息（创建或更新）
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	result := r.db.WithContext(ctx).Save(user)
	if err := result.Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save user (id: %d, email: %s): %w", user.ID, user.Email, err)
	}
	return nil
}

// SaveProfile 实现只写资料列的更新。
// 惩罚列 (penalty_score / honbap_temp / banned_until) 和账号列被显式
// 排除在 Select 之外，与并发的惩罚记账事务互不覆盖。
func (r *GormUserRepository) SaveProfile(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Model(&domain.User{ID: user.ID}).
		Select("nickname", "content", "year", "age", "gender", "major", "mbti", "free_text", "is_bot").
		Updates(user).Error
	if err != nil {
		return fmt.Errorf("gorm: save profile for user %d: %w", user.ID, err)
	}
	return nil
}

// UpdatePassword 实现只写密码哈希列的更新
func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	err := r.db.WithContext(ctx).Model(&domain.User{ID: id}).
		Update("password", hashedPassword).Error
	if err != nil {
		return fmt.Errorf("gorm: update password for user %d: %w", id, err)
	}
	return nil
}

// UpdatePenaltyTx 在单个数据库事务中以 SELECT ... FOR UPDATE 锁定
// 用户行，调用 mutate 计算新的惩罚字段后写回。并发的惩罚事件由
// 行锁串行化，阈值判断不会基于过期的读取。
func (r *GormUserRepository) UpdatePenaltyTx(ctx context.Context, id uint, mutate func(u *domain.User) error) (*domain.User, error) {
	var updated *domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrUserNotFound
			}
			return fmt.Errorf("gorm: lock user %d for penalty update: %w", id, err)
		}
		if err := mutate(&user); err != nil {
			return err
		}
		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("gorm: save penalty update for user %d: %w", id, err)
		}
		updated = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
