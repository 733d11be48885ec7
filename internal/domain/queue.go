package domain

import "time"

// 队列条目状态。状态只会从 waiting 前进到 matched 或 leaving，
// 条目本身在取消/离开时被整体删除。
const (
	QueueStatusWaiting = "waiting" // 正在等待匹配
	QueueStatusMatched = "matched" // 已匹配，RoomID 已填写
	QueueStatusLeaving = "leaving" // 用户声明即将离开（清理提示）
)

// MatchPref 是一次匹配请求携带的偏好设置。
// 指针字段为 NULL 时表示用户未填写该属性；相等性过滤要求双方都非 NULL。
type MatchPref struct {
	Year     *int    `json:"year"`
	Age      *int    `json:"age"`
	Gender   *string `json:"gender"`
	Major    *string `json:"major"`
	FreeText string  `json:"freeText"` // 空闲时间自由文本，按星期符号取交集

	YearSame    bool `json:"yearSame"`    // 要求入学年份相同
	AgeSame     bool `json:"ageSame"`     // 要求年龄相同
	GenderSame  bool `json:"genderSame"`  // 要求性别相同
	MajorSame   bool `json:"majorSame"`   // 要求专业相同
	FreeOverlap bool `json:"freeOverlap"` // 要求空闲时间有重叠
	OnlineOnly  bool `json:"onlineOnly"`  // 只匹配最近活跃的对象
}

// QueueEntry 是一个等待匹配用户的队列文档（存储在 Redis）。
// 不变式：同一 uid 同时最多存在一个有效条目；调用方在重新排队前
// 必须先删除旧条目。
type QueueEntry struct {
	ID         string    `json:"id"`         // 文档 ID (uuid)
	UID        uint      `json:"uid"`        // 所属用户
	Email      string    `json:"email"`      // 展示用邮箱
	CreatedAt  time.Time `json:"createdAt"`  // 入队时间，也是匹配扫描的排序键
	LastActive time.Time `json:"lastActive"` // 心跳时间，onlineOnly 过滤依据
	Status     string    `json:"status"`     // waiting / matched / leaving
	Pref       MatchPref `json:"pref"`       // 匹配偏好
	IsBot      bool      `json:"isBot"`      // 机器人条目标记
	RoomID     string    `json:"roomId"`     // 匹配成功后指向的房间，空表示未匹配
}
