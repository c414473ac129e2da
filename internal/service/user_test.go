package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository/mocks"
	"desk-ledger/internal/service"
)

func TestUserService_Upsert(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()
	nick := "alice"

	mockUserRepo.On("Upsert", ctx, "A", &nick, (*string)(nil)).
		Return(&domain.User{ExternalID: "A", Nickname: "alice"}, nil).
		Once()

	// Act
	user, err := svc.Upsert(ctx, "A", &nick, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Nickname)
	mockUserRepo.AssertExpectations(t)
}

func TestUserService_Upsert_Validation(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)

	_, err := svc.Upsert(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	mockUserRepo.AssertNotCalled(t, "Upsert")
}

func TestUserService_Upsert_RepositoryError(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("Upsert", ctx, "A", (*string)(nil), (*string)(nil)).
		Return(nil, errors.New("db down")).
		Once()

	_, err := svc.Upsert(ctx, "A", nil, nil)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	mockUserRepo.AssertExpectations(t)
}
