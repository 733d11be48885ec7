package domain

import "time"

// Message 是房间内的一条聊天消息。只追加、创建后不可变，
// 按 (CreatedAt, ID) 升序排列。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"type:varchar(64);index:idx_msg_room;not null" json:"roomId"` // 所属房间 (Redis 文档 ID)
	UID       uint      `gorm:"index;not null" json:"uid"`                                  // 发送者
	Email     string    `gorm:"type:varchar(191)" json:"email"`                             // 发送者邮箱（展示用）
	Text      string    `gorm:"type:text;not null" json:"text"`                             // 消息正文，已去除首尾空白
	CreatedAt time.Time `gorm:"index;not null" json:"createdAt"`
}
