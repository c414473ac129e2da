package redisstate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/repository"
)

// DefaultKeyPrefix 是所有 Redis key 和频道的默认前缀。
const DefaultKeyPrefix = "desk:"

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

var _ repository.StateRepository = (*RedisStateRepository)(nil)

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

// RoomChannel 返回房间号对应的 Pub/Sub 频道名。
func RoomChannel(keyPrefix, roomCode string) string {
	return keyPrefix + "room:" + roomCode
}

// roomCodeFromChannel 从频道名中取出房间号。
func roomCodeFromChannel(keyPrefix, channel string) (string, bool) {
	code := strings.TrimPrefix(channel, keyPrefix+"room:")
	if code == channel || code == "" {
		return "", false
	}
	return code, true
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// --- StateRepository Interface Implementation ---

// Publish 把消息发布到房间频道，所有实例上的 Relay 都会收到。
func (r *RedisStateRepository) Publish(ctx context.Context, roomCode string, payload []byte) error {
	channel := RoomChannel(r.keyPrefix, roomCode)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_code":    roomCode,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}
