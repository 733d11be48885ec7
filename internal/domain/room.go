package domain

import "time"

// RoomPhase 是房间生命周期状态机的状态。
// 状态只向前推进：pendingAccept → (declined | startCheck)，
// startCheck → (startDeclined | chatting)，chatting → ended。
// declined / startDeclined / ended 为终态。
type RoomPhase string

const (
	PhasePendingAccept RoomPhase = "pendingAccept" // 等待双方接受邀请
	PhaseDeclined      RoomPhase = "declined"      // 任意一方拒绝邀请（终态）
	PhaseStartCheck    RoomPhase = "startCheck"    // 双方已接受，等待开始投票
	PhaseStartDeclined RoomPhase = "startDeclined" // 开始投票未全票通过（终态）
	PhaseChatting      RoomPhase = "chatting"      // 聊天进行中
	PhaseEnded         RoomPhase = "ended"         // 所有成员已离开（终态）
)

// Terminal 报告该状态是否为终态。
func (p RoomPhase) Terminal() bool {
	return p == PhaseDeclined || p == PhaseStartDeclined || p == PhaseEnded
}

// TestBotUID 是测试机器人房间中的虚拟第二成员。
// 真实用户 ID 从 1 开始自增，0 不会与任何真实用户冲突。
const TestBotUID uint = 0

// Invite 记录房间创建时向对方队列条目发出的邀请。
type Invite struct {
	To       string    `json:"to"`       // 对方队列条目 ID
	At       time.Time `json:"at"`       // 发出时间
	Accepted *bool     `json:"accepted"` // 对方的决定，nil 表示尚未响应
}

// Room 是协调一对匹配用户同意流程的共享文档（存储在 Redis）。
// ExpectedMembers 在创建时固定、之后永不增长，是所有法定人数判断的
// 唯一依据；Members 随各方接受而单调增长，离开时缩减。
type Room struct {
	ID              string    `json:"id"`
	Members         []uint    `json:"members"`         // 当前确认在场的成员
	ExpectedMembers []uint    `json:"expectedMembers"` // 创建时固定的两人集合
	CreatedAt       time.Time `json:"createdAt"`
	Phase           RoomPhase `json:"phase"`
	Invite          *Invite   `json:"invites,omitempty"`
	StartVoted      []uint    `json:"startVoted,omitempty"` // 已投票的成员
	StartYes        []uint    `json:"startYes,omitempty"`   // 投了赞成票的成员
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TargetMembers 返回成员资格与法定人数判断的目标集合：
// 优先使用 ExpectedMembers，为空时退回 Members（兼容旧文档）。
func (r *Room) TargetMembers() []uint {
	if len(r.ExpectedMembers) > 0 {
		return r.ExpectedMembers
	}
	return r.Members
}

// HasMember 报告 uid 是否属于目标成员集合。
func (r *Room) HasMember(uid uint) bool {
	return containsUID(r.TargetMembers(), uid)
}

// AddUnique 将 uid 加入集合（幂等）。
func AddUnique(set []uint, uid uint) []uint {
	if containsUID(set, uid) {
		return set
	}
	return append(set, uid)
}

// RemoveUID 从集合中移除 uid。
func RemoveUID(set []uint, uid uint) []uint {
	out := make([]uint, 0, len(set))
	for _, u := range set {
		if u != uid {
			out = append(out, u)
		}
	}
	return out
}

// ContainsAll 报告 want 中的每个成员是否都在 have 中。
func ContainsAll(have, want []uint) bool {
	for _, u := range want {
		if !containsUID(have, u) {
			return false
		}
	}
	return true
}

func containsUID(set []uint, uid uint) bool {
	for _, u := range set {
		if u == uid {
			return true
		}
	}
	return false
}
