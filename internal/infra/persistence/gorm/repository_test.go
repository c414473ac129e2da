package gormpersistence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"desk-ledger/internal/domain"
	gormpersistence "desk-ledger/internal/infra/persistence/gorm"
	"desk-ledger/internal/infra/setup"
	"desk-ledger/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := setup.InitDB(setup.DBOptions{Driver: setup.DriverSQLite, DSN: dsn, Quiet: true})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func sampleRoom(id, code string, created time.Time) *domain.Room {
	return &domain.Room{
		ID:        id,
		RoomCode:  code,
		RoomName:  "table " + id,
		OwnerID:   "owner",
		Members:   []domain.Member{{ExternalID: "owner", Nickname: "O"}},
		Logs:      []domain.LogEntry{},
		CreatedAt: created,
		ExpireAt:  created.Add(7 * 24 * time.Hour),
	}
}

func TestRoomRepository_CreateAndFind(t *testing.T) {
	repo := gormpersistence.NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	room := sampleRoom("r1", "123456", now)
	room.DeskScore = 3
	room.Members = append(room.Members, domain.Member{ExternalID: "A", Nickname: "alice", PersonalScore: -3})
	room.Logs = []domain.LogEntry{{Action: domain.ActionSpend, ExternalID: "A", Nickname: "alice", Amount: 3, Timestamp: now}}
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "123456", got.RoomCode)
	assert.Equal(t, int64(3), got.DeskScore)
	require.Len(t, got.Members, 2, "成员应作为文档的一部分读回")
	assert.Equal(t, int64(-3), got.Members[1].PersonalScore)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, domain.ActionSpend, got.Logs[0].Action)
	assert.True(t, now.Equal(got.Logs[0].Timestamp))

	assert.ErrorIs(t, repo.Create(ctx, room), repository.ErrDuplicateEntry)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRoomRepository_FindByCodeReturnsNewest(t *testing.T) {
	repo := gormpersistence.NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, sampleRoom("old", "555555", now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, sampleRoom("new", "555555", now)))

	got, err := repo.FindByCode(ctx, "555555")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)

	_, err = repo.FindByCode(ctx, "000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRoomRepository_SaveCompareAndSwap(t *testing.T) {
	repo := gormpersistence.NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()
	room := sampleRoom("r1", "123456", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, room))

	next := room.Clone()
	next.DeskScore = 10
	next.Members[0].PersonalScore = -10
	next.Version = 1
	require.NoError(t, repo.Save(ctx, next, 0))

	// 旧版本写入被拒绝
	stale := room.Clone()
	stale.Version = 1
	stale.DeskScore = 99
	assert.ErrorIs(t, repo.Save(ctx, stale, 0), repository.ErrVersionConflict)

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.DeskScore)
	assert.Equal(t, int64(1), got.Version)
	assert.Zero(t, got.Balance())

	ghost := sampleRoom("ghost", "111111", time.Now())
	assert.ErrorIs(t, repo.Save(ctx, ghost, 0), repository.ErrNotFound)
}

func TestRoomRepository_DeleteExpired(t *testing.T) {
	repo := gormpersistence.NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, sampleRoom("expired", "111111", now.Add(-8*24*time.Hour))))
	require.NoError(t, repo.Create(ctx, sampleRoom("active", "222222", now)))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByID(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.FindByID(ctx, "active")
	assert.NoError(t, err)
}

func TestUserRepository_Upsert(t *testing.T) {
	repo := gormpersistence.NewGormUserRepository(newTestDB(t))
	ctx := context.Background()
	nick, avatar := "alice", "a.png"

	created, err := repo.Upsert(ctx, "A", &nick, &avatar)
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Nickname)
	assert.Equal(t, "a.png", created.AvatarRef)
	assert.False(t, created.CreatedAt.IsZero())

	newNick := "alice2"
	updated, err := repo.Upsert(ctx, "A", &newNick, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Nickname)
	assert.Equal(t, "a.png", updated.AvatarRef, "未提供的字段保持不变")
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "created_at 不随更新改变")

	same, err := repo.Upsert(ctx, "A", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice2", same.Nickname)

	_, err = repo.FindByExternalID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
