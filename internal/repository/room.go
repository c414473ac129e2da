package repository

import (
	"context"
	"time"

	"desk-ledger/internal/domain"
)

// RoomRepository 定义了房间文档的存储和检索操作。
// 房间的成员和日志作为文档的一部分整体读写。
type RoomRepository interface {
	// Create 插入一个新房间。ID 冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// FindByID 根据房间 ID 加载完整状态，不存在时返回 ErrNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// FindByCode 返回当前使用该房间号的最新房间 (按创建时间)，不存在时返回 ErrNotFound。
	// 不过滤过期房间，由调用方判断。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Save 在版本号等于 expectedVersion 时整体覆盖房间状态。
	// 版本不匹配返回 ErrVersionConflict，房间不存在返回 ErrNotFound。
	Save(ctx context.Context, room *domain.Room, expectedVersion int64) error

	// DeleteExpired 删除 expireAt 早于 before 的房间，返回删除数量。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
