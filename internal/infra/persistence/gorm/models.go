package gormpersistence

import (
	"time"

	"gorm.io/datatypes"

	"desk-ledger/internal/domain"
)

// roomRecord 是 rooms 表的行。成员和日志作为 JSON 列与房间一起整体读写，
// 整个房间就是一个文档。
type roomRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	RoomCode  string `gorm:"size:6;not null;index:idx_room_code_created,priority:1"`
	RoomName  string `gorm:"size:191"`
	OwnerID   string `gorm:"size:191;not null"`
	DeskScore int64  `gorm:"not null;default:0"`
	Version   int64  `gorm:"not null;default:0"`
	Members   datatypes.JSONSlice[domain.Member]
	Logs      datatypes.JSONSlice[domain.LogEntry]
	CreatedAt time.Time `gorm:"index:idx_room_code_created,priority:2"`
	UpdatedAt time.Time
	ExpireAt  time.Time `gorm:"index"`
}

func (roomRecord) TableName() string { return "rooms" }

func newRoomRecord(r *domain.Room) *roomRecord {
	return &roomRecord{
		ID:        r.ID,
		RoomCode:  r.RoomCode,
		RoomName:  r.RoomName,
		OwnerID:   r.OwnerID,
		DeskScore: r.DeskScore,
		Version:   r.Version,
		Members:   datatypes.JSONSlice[domain.Member](r.Members),
		Logs:      datatypes.JSONSlice[domain.LogEntry](r.Logs),
		CreatedAt: r.CreatedAt,
		ExpireAt:  r.ExpireAt,
	}
}

func (rec *roomRecord) toDomain() *domain.Room {
	room := &domain.Room{
		ID:        rec.ID,
		RoomCode:  rec.RoomCode,
		RoomName:  rec.RoomName,
		OwnerID:   rec.OwnerID,
		DeskScore: rec.DeskScore,
		Version:   rec.Version,
		Members:   []domain.Member(rec.Members),
		Logs:      []domain.LogEntry(rec.Logs),
		CreatedAt: rec.CreatedAt,
		ExpireAt:  rec.ExpireAt,
	}
	if room.Members == nil {
		room.Members = []domain.Member{}
	}
	if room.Logs == nil {
		room.Logs = []domain.LogEntry{}
	}
	return room
}

// userRecord 是 users 表的行。
type userRecord struct {
	ExternalID string `gorm:"primaryKey;size:191"`
	Nickname   string `gorm:"size:191"`
	AvatarRef  string `gorm:"size:512"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userRecord) TableName() string { return "users" }

func (rec *userRecord) toDomain() *domain.User {
	return &domain.User{
		ExternalID: rec.ExternalID,
		Nickname:   rec.Nickname,
		AvatarRef:  rec.AvatarRef,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// Models 返回需要迁移的所有表模型。
func Models() []any {
	return []any{&roomRecord{}, &userRecord{}}
}
