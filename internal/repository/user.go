package repository

import (
	"context"

	"github.com/qkdtjwns123-del/honbap-pairing-2/internal/domain"
)

// UserRepository 定义了用户资料（含惩罚账本）的存储和检索操作。
type UserRepository interface {
	// FindByID 根据用户 ID 查找用户。
	// 如果用户不存在，返回 ErrUserNotFound。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByEmail 根据邮箱查找用户。
	// 如果用户不存在，返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Save 保存用户信息。
	// 如果用户已存在 (基于 ID)，则更新；否则创建新用户。
	// 注意：Save 只用于创建用户，已有用户的资料更新走 SaveProfile，
	// 惩罚字段走 UpdatePenaltyTx。
	Save(ctx context.Context, user *domain.User) error

	// SaveProfile 只写入资料列（昵称、介绍、匹配属性等）。
	// 惩罚字段和账号字段不在写入范围内：资料保存与并发的
	// 惩罚记账交错时，惩罚写入不会被覆盖。
	SaveProfile(ctx context.Context, user *domain.User) error

	// UpdatePassword 只写入密码哈希列。
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error

	// UpdatePenaltyTx 在单个行锁事务中对用户执行读-改-写：
	// 读取当前行并加排他锁，调用 mutate 计算新的惩罚字段，然后写回。
	// 并发的惩罚事件由数据库行锁串行化，不会丢失更新。
	// 返回写回后的用户。
	UpdatePenaltyTx(ctx context.Context, id uint, mutate func(u *domain.User) error) (*domain.User, error)
}
