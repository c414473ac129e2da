// Package ledger 实现房间计分账本的纯逻辑部分。
// 所有操作都在房间的副本上进行，成功时返回新状态，失败时原状态不变，不做任何 I/O。
package ledger

import (
	"fmt"
	"time"

	"desk-ledger/internal/domain"
)

const (
	// DefaultMaxMembers 是一个房间允许的最大成员数。
	DefaultMaxMembers = 20
	// DefaultRoomTTL 是房间从创建到过期的时长。
	DefaultRoomTTL = 7 * 24 * time.Hour
)

// Ledger 持有账本规则的参数。零值不可用，请使用 New。
type Ledger struct {
	maxMembers int
	ttl        time.Duration
	now        func() time.Time
}

// Option 用于调整 Ledger 的参数。
type Option func(*Ledger)

// WithMaxMembers 设置房间容量上限。
func WithMaxMembers(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxMembers = n
		}
	}
}

// WithTTL 设置房间的有效期。
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock 替换时间来源，测试中使用固定时钟。
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New 创建一个 Ledger。
func New(opts ...Option) *Ledger {
	l := &Ledger{
		maxMembers: DefaultMaxMembers,
		ttl:        DefaultRoomTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxMembers 返回容量上限。
func (l *Ledger) MaxMembers() int { return l.maxMembers }

// Owner 是创建房间时的房主资料。
type Owner struct {
	ExternalID string
	Nickname   string
	AvatarRef  string
}

// CreateRoom 构造一个新房间：房主作为唯一的初始成员，分数为 0，桌面分数为 0，日志为空。
// id 和 code 由调用方分配 (见 directory 包)。
func (l *Ledger) CreateRoom(id, code string, owner Owner, roomName string) (*domain.Room, error) {
	if owner.ExternalID == "" {
		return nil, fmt.Errorf("%w: ownerId is required", domain.ErrValidation)
	}
	if id == "" || code == "" {
		return nil, fmt.Errorf("%w: room id and code are required", domain.ErrValidation)
	}
	now := l.now()
	return &domain.Room{
		ID:       id,
		RoomCode: code,
		RoomName: roomName,
		OwnerID:  owner.ExternalID,
		Members: []domain.Member{{
			ExternalID: owner.ExternalID,
			Nickname:   owner.Nickname,
			AvatarRef:  owner.AvatarRef,
		}},
		Logs:      []domain.LogEntry{},
		CreatedAt: now,
		ExpireAt:  now.Add(l.ttl),
	}, nil
}

// Join 让用户加入房间。已是成员的用户 ("回访") 只更新提供了的昵称/头像并记录 Return；
// 新成员在房间已满时返回 ErrRoomFull，否则以 0 分加入并记录 Join。
func (l *Ledger) Join(room *domain.Room, externalID, nickname, avatar string) (*domain.Room, domain.LogEntry, error) {
	if externalID == "" {
		return nil, domain.LogEntry{}, fmt.Errorf("%w: externalId is required", domain.ErrValidation)
	}
	next := room.Clone()

	if i := next.MemberIndex(externalID); i >= 0 {
		m := &next.Members[i]
		if nickname != "" {
			m.Nickname = nickname
		}
		if avatar != "" {
			m.AvatarRef = avatar
		}
		entry := l.appendLog(next, domain.ActionReturn, externalID, m.Nickname, 0)
		return next, entry, nil
	}

	// 容量只限制新成员
	if len(next.Members) >= l.maxMembers {
		return nil, domain.LogEntry{}, fmt.Errorf("%w: %d members", domain.ErrRoomFull, len(next.Members))
	}
	next.Members = append(next.Members, domain.Member{
		ExternalID: externalID,
		Nickname:   nickname,
		AvatarRef:  avatar,
	})
	entry := l.appendLog(next, domain.ActionJoin, externalID, nickname, 0)
	return next, entry, nil
}

// UpdateMember 只更新提供了的字段，不写日志。返回的 MemberPatch 只包含被修改的字段。
func (l *Ledger) UpdateMember(room *domain.Room, externalID string, nickname, avatar *string) (*domain.Room, domain.MemberPatch, error) {
	if externalID == "" {
		return nil, domain.MemberPatch{}, fmt.Errorf("%w: externalId is required", domain.ErrValidation)
	}
	if nickname == nil && avatar == nil {
		return nil, domain.MemberPatch{}, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	next := room.Clone()
	i := next.MemberIndex(externalID)
	if i < 0 {
		return nil, domain.MemberPatch{}, fmt.Errorf("%w: %s", domain.ErrMemberNotFound, externalID)
	}

	patch := domain.MemberPatch{ExternalID: externalID}
	if nickname != nil {
		v := *nickname
		next.Members[i].Nickname = v
		patch.Nickname = &v
	}
	if avatar != nil {
		v := *avatar
		next.Members[i].AvatarRef = v
		patch.AvatarRef = &v
	}
	next.Version++
	return next, patch, nil
}

// Spend 把 amount 从成员转入桌面。个人分数没有下限，amount 也不做符号限制。
func (l *Ledger) Spend(room *domain.Room, externalID, nickname string, amount int64) (*domain.Room, domain.LogEntry, error) {
	next, i, err := l.locate(room, externalID)
	if err != nil {
		return nil, domain.LogEntry{}, err
	}
	next.Members[i].PersonalScore -= amount
	next.DeskScore += amount
	entry := l.appendLog(next, domain.ActionSpend, externalID, l.actorName(next, i, nickname), amount)
	return next, entry, nil
}

// Reclaim 把 amount 从桌面转给成员。桌面分数不能为负，amount 超过 DeskScore 时返回 ErrInsufficientDeskPool。
func (l *Ledger) Reclaim(room *domain.Room, externalID, nickname string, amount int64) (*domain.Room, domain.LogEntry, error) {
	next, i, err := l.locate(room, externalID)
	if err != nil {
		return nil, domain.LogEntry{}, err
	}
	if amount > next.DeskScore {
		return nil, domain.LogEntry{}, fmt.Errorf("%w: requested %d, desk holds %d",
			domain.ErrInsufficientDeskPool, amount, next.DeskScore)
	}
	next.DeskScore -= amount
	next.Members[i].PersonalScore += amount
	entry := l.appendLog(next, domain.ActionReclaim, externalID, l.actorName(next, i, nickname), amount)
	return next, entry, nil
}

func (l *Ledger) locate(room *domain.Room, externalID string) (*domain.Room, int, error) {
	if externalID == "" {
		return nil, -1, fmt.Errorf("%w: externalId is required", domain.ErrValidation)
	}
	i := room.MemberIndex(externalID)
	if i < 0 {
		return nil, -1, fmt.Errorf("%w: %s", domain.ErrMemberNotFound, externalID)
	}
	return room.Clone(), i, nil
}

// actorName 请求里带了昵称就用请求的，否则用成员当前昵称。
func (l *Ledger) actorName(room *domain.Room, i int, nickname string) string {
	if nickname != "" {
		return nickname
	}
	return room.Members[i].Nickname
}

// appendLog 在日志头部插入一条记录并推进版本号。
func (l *Ledger) appendLog(room *domain.Room, action domain.LogAction, externalID, nickname string, amount int64) domain.LogEntry {
	entry := domain.LogEntry{
		Action:     action,
		ExternalID: externalID,
		Nickname:   nickname,
		Amount:     amount,
		Timestamp:  l.now(),
	}
	logs := make([]domain.LogEntry, 0, len(room.Logs)+1)
	logs = append(logs, entry)
	room.Logs = append(logs, room.Logs...)
	room.Version++
	return entry
}
