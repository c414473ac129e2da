package service

import (
	"errors"
	"fmt"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository"
)

// mapRoomRepoError 将仓库层的错误映射到领域错误：
// 房间不存在 -> ErrRoomNotFound，其余一律视为 ErrPersistence。
func mapRoomRepoError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
