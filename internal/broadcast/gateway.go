// Package broadcast 在变更提交后把房间状态推送到房间号对应的频道。
// 投递是尽力而为的多播，不做补发也没有重放日志。
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"desk-ledger/internal/domain"
)

// MessageType 区分两种消息形态。
type MessageType string

const (
	// TypeRoomUpdate 携带完整房间快照，join/spend/reclaim 之后发送。
	TypeRoomUpdate MessageType = "roomUpdate"
	// TypeMemberUpdate 只携带变更的成员字段，资料更新之后发送。
	TypeMemberUpdate MessageType = "memberUpdate"
)

// Message 是写入频道的消息。
type Message struct {
	Type     MessageType     `json:"type"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data"`
}

// Channel 是频道发布原语，频道 key 即房间号。
type Channel interface {
	Publish(ctx context.Context, channelKey string, payload []byte) error
}

// Recorder 记录发布结果，可以为 nil。
type Recorder interface {
	Broadcast(kind string, err error)
}

// Gateway 把领域事件编码成 Message 并发布。
type Gateway struct {
	channel Channel
	rec     Recorder
}

// NewGateway 创建 Gateway。
func NewGateway(channel Channel, rec Recorder) *Gateway {
	if channel == nil {
		panic("Channel cannot be nil for broadcast Gateway")
	}
	return &Gateway{channel: channel, rec: rec}
}

// RoomUpdate 发布完整快照。
func (g *Gateway) RoomUpdate(ctx context.Context, room *domain.Room) error {
	msg, err := SnapshotMessage(room)
	if err != nil {
		return err
	}
	return g.publish(ctx, msg)
}

// MemberUpdate 发布只包含修改字段的成员补丁。
func (g *Gateway) MemberUpdate(ctx context.Context, roomCode string, patch domain.MemberPatch) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("broadcast: encode member patch: %w", err)
	}
	return g.publish(ctx, Message{Type: TypeMemberUpdate, RoomCode: roomCode, Data: data})
}

func (g *Gateway) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err == nil {
		err = g.channel.Publish(ctx, msg.RoomCode, payload)
	}
	if g.rec != nil {
		g.rec.Broadcast(string(msg.Type), err)
	}
	if err != nil {
		return fmt.Errorf("broadcast: publish %s to %s: %w", msg.Type, msg.RoomCode, err)
	}
	return nil
}

// SnapshotMessage 把房间编码为 roomUpdate 消息，订阅时的首条消息也用它。
func SnapshotMessage(room *domain.Room) (Message, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return Message{}, fmt.Errorf("broadcast: encode room snapshot: %w", err)
	}
	return Message{Type: TypeRoomUpdate, RoomCode: room.RoomCode, Data: data}, nil
}

// Encode 编码一条 Message。
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
