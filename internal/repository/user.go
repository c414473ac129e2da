package repository

import (
	"context"

	"desk-ledger/internal/domain"
)

// UserRepository 定义了用户资料的存储和检索操作。
type UserRepository interface {
	// FindByExternalID 根据外部 ID 查找用户，不存在时返回 ErrNotFound。
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// Upsert 首次出现时创建用户，之后只更新非 nil 的字段。返回写入后的用户。
	Upsert(ctx context.Context, externalID string, nickname, avatar *string) (*domain.User, error)
}
