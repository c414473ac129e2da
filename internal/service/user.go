package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository"
)

// UserService 负责用户资料的创建和更新。
type UserService struct {
	users repository.UserRepository
}

// NewUserService 创建 UserService 实例。
func NewUserService(users repository.UserRepository) *UserService {
	if users == nil {
		panic("UserRepository cannot be nil for UserService")
	}
	return &UserService{users: users}
}

// Upsert 首次调用时创建用户，之后只更新提供了的字段。
func (s *UserService) Upsert(ctx context.Context, externalID string, nickname, avatar *string) (*domain.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: externalId is required", domain.ErrValidation)
	}
	logCtx := logrus.WithField("external_id", externalID)

	user, err := s.users.Upsert(ctx, externalID, nickname, avatar)
	if err != nil {
		logCtx.WithError(err).Error("Failed to upsert user")
		return nil, fmt.Errorf("%w: upsert user: %v", domain.ErrPersistence, err)
	}
	logCtx.Debug("User upserted")
	return user, nil
}
