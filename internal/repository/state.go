package repository

import (
	"context"
	"time"
)

// StateRepository 定义了跨实例共享的实时状态操作，通常由 Redis 实现。
type StateRepository interface {
	// Publish 把已编码的消息发布到房间号对应的频道。
	Publish(ctx context.Context, roomCode string, payload []byte) error

	// CheckRateLimit 递增 key 在窗口内的计数，超过 limit 时返回 true。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
