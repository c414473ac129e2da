package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

var _ repository.RoomRepository = (*GormRoomRepository)(nil)

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// Create 插入新房间
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	rec := newRoomRecord(room)
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (id: %s, code: %s): %w", room.ID, room.RoomCode, err)
	}
	return nil
}

// FindByID 根据房间 ID 加载完整文档
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var rec roomRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return rec.toDomain(), nil
}

// FindByCode 返回使用该房间号的最新房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var rec roomRecord
	err := r.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("created_at DESC").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return rec.toDomain(), nil
}

// Save 以版本号做条件整体更新房间 (compare-and-swap)
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room, expectedVersion int64) error {
	rec := newRoomRecord(room)
	result := r.db.WithContext(ctx).
		Model(&roomRecord{}).
		Where("id = ? AND version = ?", room.ID, expectedVersion).
		Updates(map[string]any{
			"room_name":  rec.RoomName,
			"desk_score": rec.DeskScore,
			"version":    rec.Version,
			"members":    rec.Members,
			"logs":       rec.Logs,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: save room (id: %s, version: %d): %w", room.ID, expectedVersion, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 没有行被更新：房间不存在或版本已被推进
	var count int64
	if err := r.db.WithContext(ctx).Model(&roomRecord{}).Where("id = ?", room.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("gorm: check room %s after empty update: %w", room.ID, err)
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

// DeleteExpired 删除 expire_at 早于 before 的房间
func (r *GormRoomRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expire_at < ?", before).Delete(&roomRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete rooms expired before %s: %w", before.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
