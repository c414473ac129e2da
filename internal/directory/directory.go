// Package directory 负责房间号的发放和查找。
package directory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	codeMin = 100000
	codeMax = 999999

	// DefaultCodeAttempts 是 IssueCode 查重的最大次数。
	DefaultCodeAttempts = 10
)

// RoomFinder 是 Directory 需要的存储能力。
type RoomFinder interface {
	FindByCode(ctx context.Context, code string) (*domain.Room, error)
}

// Directory 把房间号映射到房间。
type Directory struct {
	rooms    RoomFinder
	attempts int
	intn     func(n int) int
	now      func() time.Time
}

// New 创建 Directory。attempts <= 0 时使用 DefaultCodeAttempts。
func New(rooms RoomFinder, attempts int) *Directory {
	if rooms == nil {
		panic("RoomFinder cannot be nil for Directory")
	}
	if attempts <= 0 {
		attempts = DefaultCodeAttempts
	}
	return &Directory{
		rooms:    rooms,
		attempts: attempts,
		intn:     rand.IntN,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateCode 从 [100000, 999999] 中均匀地抽取一个 6 位房间号，不查重。
func (d *Directory) GenerateCode() string {
	return strconv.Itoa(codeMin + d.intn(codeMax-codeMin+1))
}

// IssueCode 抽取房间号并跳过正被活跃房间使用的号码。
// 重试次数用完后返回最后一次抽到的号码，Resolve 总是选择最新的房间。
func (d *Directory) IssueCode(ctx context.Context) (string, error) {
	var code string
	for attempt := 0; attempt < d.attempts; attempt++ {
		code = d.GenerateCode()
		_, err := d.Lookup(ctx, code)
		if errors.Is(err, domain.ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	logrus.WithFields(logrus.Fields{
		"component": "directory",
		"room_code": code,
		"attempts":  d.attempts,
	}).Warn("No free room code found, reusing an active one")
	return code, nil
}

// Lookup 返回当前使用该房间号的活跃房间。过期房间视为不存在。
func (d *Directory) Lookup(ctx context.Context, code string) (*domain.Room, error) {
	if len(code) != 6 {
		return nil, fmt.Errorf("%w: %q", domain.ErrRoomNotFound, code)
	}
	room, err := d.rooms.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, code)
		}
		return nil, fmt.Errorf("%w: find room by code: %v", domain.ErrPersistence, err)
	}
	if room == nil || room.IsExpired(d.now()) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, code)
	}
	return room, nil
}

// Resolve 把房间号解析为房间 ID。
func (d *Directory) Resolve(ctx context.Context, code string) (string, error) {
	room, err := d.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	return room.ID, nil
}
