package domain

import "time"

// Room 表示一个计分房间：一个共享的桌面分数池 (desk) 加上成员各自的分数。
// 不变量: DeskScore + 所有成员 PersonalScore 之和恒为 0。
type Room struct {
	ID        string     `json:"id"`
	RoomCode  string     `json:"roomCode"` // 6 位数字，供人分享，不保证跨时间全局唯一
	RoomName  string     `json:"roomName"`
	OwnerID   string     `json:"ownerId"`
	DeskScore int64      `json:"deskScore"`
	Members   []Member   `json:"members"` // 按加入顺序
	Logs      []LogEntry `json:"logs"`    // 最新的在前
	Version   int64      `json:"version"` // 每次成功变更 +1
	CreatedAt time.Time  `json:"createdAt"`
	ExpireAt  time.Time  `json:"expireAt"`
}

// Member 是嵌入在 Room 中的成员记录，一旦加入就不会被删除。
type Member struct {
	ExternalID    string `json:"externalId"`
	Nickname      string `json:"nickname"`
	AvatarRef     string `json:"avatar"`
	PersonalScore int64  `json:"personalScore"` // 可为负数
}

// MemberPatch 描述一次资料变更中实际提供的字段，未提供的字段为 nil。
type MemberPatch struct {
	ExternalID string  `json:"externalId"`
	Nickname   *string `json:"nickname,omitempty"`
	AvatarRef  *string `json:"avatar,omitempty"`
}

// MemberIndex 返回成员在 Members 中的下标，不存在时返回 -1。
func (r *Room) MemberIndex(externalID string) int {
	for i := range r.Members {
		if r.Members[i].ExternalID == externalID {
			return i
		}
	}
	return -1
}

// IsExpired 判断房间在 now 时刻是否已过期。
func (r *Room) IsExpired(now time.Time) bool {
	return !r.ExpireAt.IsZero() && !now.Before(r.ExpireAt)
}

// Balance 返回桌面分数与所有成员分数之和，正确的房间永远为 0。
func (r *Room) Balance() int64 {
	sum := r.DeskScore
	for _, m := range r.Members {
		sum += m.PersonalScore
	}
	return sum
}

// Clone 深拷贝房间，账本操作在副本上修改，失败时原状态不受影响。
func (r *Room) Clone() *Room {
	c := *r
	c.Members = make([]Member, len(r.Members))
	copy(c.Members, r.Members)
	c.Logs = make([]LogEntry, len(r.Logs))
	copy(c.Logs, r.Logs)
	return &c
}
