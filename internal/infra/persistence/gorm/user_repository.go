package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

var _ repository.UserRepository = (*GormUserRepository)(nil)

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByExternalID 根据外部 ID 查找用户
func (r *GormUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find user by external id '%s': %w", externalID, err)
	}
	return rec.toDomain(), nil
}

// Upsert 插入用户，主键冲突时只更新提供了的字段，created_at 保持不变
func (r *GormUserRepository) Upsert(ctx context.Context, externalID string, nickname, avatar *string) (*domain.User, error) {
	rec := userRecord{ExternalID: externalID}
	columns := make([]string, 0, 3)
	if nickname != nil {
		rec.Nickname = *nickname
		columns = append(columns, "nickname")
	}
	if avatar != nil {
		rec.AvatarRef = *avatar
		columns = append(columns, "avatar_ref")
	}

	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
	}
	if len(columns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(append(columns, "updated_at"))
	}

	if err := r.db.WithContext(ctx).Clauses(onConflict).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("gorm: upsert user '%s': %w", externalID, err)
	}
	// 冲突更新时 rec 里的 created_at 不是库中的值，重新读取
	return r.FindByExternalID(ctx, externalID)
}
