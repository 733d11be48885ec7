// Package domain 定义了应用程序的核心数据模型。
package domain

import "time"

// DefaultHonbapTemp 是新用户的初始"혼밥温度"（信誉温度）。
const DefaultHonbapTemp = 50.0

// User 表示一个用户：账号信息、展示资料以及惩罚账本。
// 惩罚字段 (PenaltyScore / HonbapTemp / BannedUntil) 只允许由
// PenaltyService 在行锁事务中修改，其他代码路径不得写入。
type User struct {
	ID           uint       `gorm:"primaryKey"`                              // 用户唯一标识符 (主键)
	Email        string     `gorm:"type:varchar(191);uniqueIndex:idx_email"` // 登录邮箱，匿名用户为生成值
	Password     string     `gorm:"type:text"`                               // bcrypt 哈希，匿名用户为空
	IsAnonymous  bool       `gorm:"not null;default:false"`                  // 匿名登录标记
	Nickname     string     `gorm:"type:varchar(64)"`                        // 昵称（展示用）
	Content      string     `gorm:"type:text"`                               // 自我介绍
	Year         *int       ``                                               // 入学年份，未填写为 NULL
	Age          *int       ``                                               // 年龄
	Gender       *string    `gorm:"type:varchar(16)"`                        // 性别
	Major        *string    `gorm:"type:varchar(64)"`                        // 专业
	MBTI         *string    `gorm:"type:varchar(8)"`                         // MBTI（展示用）
	FreeText     string     `gorm:"type:varchar(64)"`                        // 空闲时间描述，例如 "월수금"
	IsBot        bool       `gorm:"not null;default:false"`                  // 测试机器人账号标记
	PenaltyScore int        `gorm:"not null;default:0"`                      // 累计惩罚分，只增不减
	HonbapTemp   float64    `gorm:"not null;default:50"`                     // 温度分，下限 0
	BannedUntil  *time.Time ``                                               // 禁用截止时间，NULL 表示未被禁用
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// BannedRemaining 返回距离禁用解除的剩余时长；未被禁用时为 0。
func (u *User) BannedRemaining(now time.Time) time.Duration {
	if u.BannedUntil == nil {
		return 0
	}
	if remain := u.BannedUntil.Sub(now); remain > 0 {
		return remain
	}
	return 0
}
