package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/broadcast"
	"desk-ledger/internal/directory"
	"desk-ledger/internal/domain"
	"desk-ledger/internal/ledger"
	"desk-ledger/internal/metrics"
	"desk-ledger/internal/repository"
	"desk-ledger/internal/serializer"
)

// maxSaveAttempts 是版本冲突时重新加载再保存的次数上限。
// 同一实例内的变更已被 serializer 串行化，冲突只会来自其他实例。
const maxSaveAttempts = 3

// Broadcaster 在变更提交后发布房间消息。
type Broadcaster interface {
	RoomUpdate(ctx context.Context, room *domain.Room) error
	MemberUpdate(ctx context.Context, roomCode string, patch domain.MemberPatch) error
}

// CreateRoomInput 是创建房间的参数。
type CreateRoomInput struct {
	OwnerID     string
	OwnerName   string
	OwnerAvatar string
	RoomName    string
}

// ScoreInput 是 spend / reclaim 的参数。
type ScoreInput struct {
	ExternalID string
	Nickname   string
	Amount     int64
}

// JoinInput 是加入房间的参数。
type JoinInput struct {
	ExternalID string
	Nickname   string
	Avatar     string
}

// RoomService 负责房间的创建、查询和所有计分变更。
type RoomService struct {
	rooms   repository.RoomRepository
	dir     *directory.Directory
	ledger  *ledger.Ledger
	serial  *serializer.Serializer
	caster  Broadcaster
	metrics *metrics.Metrics
	newID   func() string
}

// NewRoomService 创建 RoomService 实例。m 可以为 nil。
func NewRoomService(
	rooms repository.RoomRepository,
	dir *directory.Directory,
	l *ledger.Ledger,
	serial *serializer.Serializer,
	caster Broadcaster,
	m *metrics.Metrics,
) *RoomService {
	if rooms == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if dir == nil {
		panic("Directory cannot be nil for RoomService")
	}
	if l == nil {
		panic("Ledger cannot be nil for RoomService")
	}
	if serial == nil {
		panic("Serializer cannot be nil for RoomService")
	}
	if caster == nil {
		panic("Broadcaster cannot be nil for RoomService")
	}
	return &RoomService{
		rooms:   rooms,
		dir:     dir,
		ledger:  l,
		serial:  serial,
		caster:  caster,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// CreateRoom 创建一个新房间，房主是唯一的初始成员。
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": in.OwnerID, "action": "create"})
	if in.OwnerID == "" {
		s.metrics.Mutation("create", metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: ownerId is required", domain.ErrValidation)
	}

	// 1. 发放房间号
	code, err := s.dir.IssueCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to issue room code")
		s.metrics.Mutation("create", metrics.OutcomeError)
		return nil, err
	}
	logCtx = logCtx.WithField("room_code", code)

	// 2. 构造房间
	room, err := s.ledger.CreateRoom(s.newID(), code, ledger.Owner{
		ExternalID: in.OwnerID,
		Nickname:   in.OwnerName,
		AvatarRef:  in.OwnerAvatar,
	}, in.RoomName)
	if err != nil {
		s.metrics.Mutation("create", metrics.OutcomeRejected)
		return nil, err
	}

	// 3. 保存
	if err := s.rooms.Create(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		s.metrics.Mutation("create", metrics.OutcomeError)
		return nil, fmt.Errorf("%w: create room: %v", domain.ErrPersistence, err)
	}

	s.metrics.Mutation("create", metrics.OutcomeOK)
	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// GetRoom 按房间号读取当前状态。
func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	return s.dir.Lookup(ctx, code)
}

// Snapshot 在房间的串行队列里读取当前状态，编码成 roomUpdate 消息交给 deliver。
// deliver 返回之前不会有该房间的新变更提交或广播，新订阅者据此保证快照排在后续广播之前。
func (s *RoomService) Snapshot(ctx context.Context, code string, deliver func(payload []byte)) error {
	roomID, err := s.dir.Resolve(ctx, code)
	if err != nil {
		return err
	}
	_, err = serializer.Run(ctx, s.serial, roomID, func(ctx context.Context) (struct{}, error) {
		room, err := s.rooms.FindByID(ctx, roomID)
		if err != nil {
			return struct{}{}, mapRoomRepoError(err, "load room")
		}
		msg, err := broadcast.SnapshotMessage(room)
		if err != nil {
			return struct{}{}, err
		}
		payload, err := broadcast.Encode(msg)
		if err != nil {
			return struct{}{}, err
		}
		deliver(payload)
		return struct{}{}, nil
	})
	return err
}

// Join 把用户加入房间，已是成员时视为回访。
func (s *RoomService) Join(ctx context.Context, code string, in JoinInput) (*domain.Room, error) {
	fields := logrus.Fields{"external_id": in.ExternalID}
	return s.mutate(ctx, "join", code, fields, func(room *domain.Room) (*domain.Room, *domain.MemberPatch, error) {
		next, _, err := s.ledger.Join(room, in.ExternalID, in.Nickname, in.Avatar)
		return next, nil, err
	})
}

// Spend 把分数从成员转入桌面。
func (s *RoomService) Spend(ctx context.Context, code string, in ScoreInput) (*domain.Room, error) {
	fields := logrus.Fields{"external_id": in.ExternalID, "amount": in.Amount}
	return s.mutate(ctx, "spend", code, fields, func(room *domain.Room) (*domain.Room, *domain.MemberPatch, error) {
		next, _, err := s.ledger.Spend(room, in.ExternalID, in.Nickname, in.Amount)
		return next, nil, err
	})
}

// Reclaim 把分数从桌面转给成员。
func (s *RoomService) Reclaim(ctx context.Context, code string, in ScoreInput) (*domain.Room, error) {
	fields := logrus.Fields{"external_id": in.ExternalID, "amount": in.Amount}
	return s.mutate(ctx, "reclaim", code, fields, func(room *domain.Room) (*domain.Room, *domain.MemberPatch, error) {
		next, _, err := s.ledger.Reclaim(room, in.ExternalID, in.Nickname, in.Amount)
		return next, nil, err
	})
}

// UpdateMember 更新成员资料，只广播修改过的字段。
func (s *RoomService) UpdateMember(ctx context.Context, code, externalID string, nickname, avatar *string) (*domain.Room, error) {
	fields := logrus.Fields{"external_id": externalID}
	return s.mutate(ctx, "update_member", code, fields, func(room *domain.Room) (*domain.Room, *domain.MemberPatch, error) {
		next, patch, err := s.ledger.UpdateMember(room, externalID, nickname, avatar)
		if err != nil {
			return nil, nil, err
		}
		return next, &patch, nil
	})
}

// SweepExpired 删除 before 之前过期的房间。
func (s *RoomService) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.rooms.DeleteExpired(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep expired rooms: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

type applyFunc func(room *domain.Room) (*domain.Room, *domain.MemberPatch, error)

// mutate 在房间的串行队列里执行 加载 → 账本操作 → 保存 → 广播。
// 调用方放弃等待时任务依然会执行完并广播。
func (s *RoomService) mutate(ctx context.Context, action, code string, fields logrus.Fields, apply applyFunc) (*domain.Room, error) {
	logCtx := logrus.WithFields(fields).WithFields(logrus.Fields{"action": action, "room_code": code})

	roomID, err := s.dir.Resolve(ctx, code)
	if err != nil {
		s.record(action, err)
		logCtx.WithError(err).Warn("Failed to resolve room code")
		return nil, err
	}
	logCtx = logCtx.WithField("room_id", roomID)

	room, err := serializer.Run(ctx, s.serial, roomID, func(ctx context.Context) (*domain.Room, error) {
		return s.applyAndPublish(ctx, action, roomID, apply, logCtx)
	})
	// Run 可能因为调用方 ctx 取消提前返回，此时结果由任务自己记录
	if err != nil && !errors.Is(err, ctx.Err()) {
		logCtx.WithError(err).Warn("Mutation rejected")
	}
	return room, err
}

// applyAndPublish 在临界区内执行，返回新状态或错误。
func (s *RoomService) applyAndPublish(ctx context.Context, action, roomID string, apply applyFunc, logCtx *logrus.Entry) (*domain.Room, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.rooms.FindByID(ctx, roomID)
		if err != nil {
			err = mapRoomRepoError(err, "load room")
			s.record(action, err)
			return nil, err
		}

		next, patch, err := apply(current)
		if err != nil {
			s.record(action, err)
			return nil, err
		}

		err = s.rooms.Save(ctx, next, current.Version)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxSaveAttempts {
			logCtx.WithField("attempt", attempt).Warn("Room version conflict, reloading")
			continue
		}
		if err != nil {
			err = mapRoomRepoError(err, "save room")
			logCtx.WithError(err).Error("Failed to save room")
			s.record(action, err)
			return nil, err
		}
		s.record(action, nil)

		// 广播失败不影响已提交的变更
		if patch != nil {
			err = s.caster.MemberUpdate(ctx, next.RoomCode, *patch)
		} else {
			err = s.caster.RoomUpdate(ctx, next)
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to broadcast room change")
		}
		logCtx.WithField("version", next.Version).Info("Room mutation applied")
		return next, nil
	}
}

func (s *RoomService) record(action string, err error) {
	switch {
	case err == nil:
		s.metrics.Mutation(action, metrics.OutcomeOK)
	case errors.Is(err, domain.ErrPersistence):
		s.metrics.Mutation(action, metrics.OutcomeError)
	default:
		s.metrics.Mutation(action, metrics.OutcomeRejected)
	}
}
