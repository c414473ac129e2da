package redisstate

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// LocalPublisher 是本实例上的扇出目标，通常是 hub.Hub。
type LocalPublisher interface {
	Publish(ctx context.Context, channelKey string, payload []byte) error
}

// Relay 订阅所有房间频道，把收到的消息交给本地 Hub。
// 多实例部署时每个实例各运行一个 Relay。
type Relay struct {
	client    *redis.Client
	keyPrefix string
	local     LocalPublisher
}

// NewRelay 创建 Relay。
func NewRelay(client *redis.Client, keyPrefix string, local LocalPublisher) *Relay {
	if client == nil {
		panic("redis client cannot be nil for Relay")
	}
	if local == nil {
		panic("LocalPublisher cannot be nil for Relay")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Relay{client: client, keyPrefix: keyPrefix, local: local}
}

// Run 阻塞地转发消息，直到 ctx 结束或订阅连接关闭。
// 订阅建立后关闭 ready (ready 可以为 nil)。
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	pattern := RoomChannel(r.keyPrefix, "*")
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// 等待订阅确认，确保之后发布的消息不会丢
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: psubscribe %s: %w", pattern, err)
	}
	if ready != nil {
		close(ready)
	}
	log := logrus.WithFields(logrus.Fields{"component": "relay", "pattern": pattern})
	log.Info("Relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info("Relay stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			code, ok := roomCodeFromChannel(r.keyPrefix, msg.Channel)
			if !ok {
				log.WithField("channel", msg.Channel).Warn("Relay received message on unexpected channel")
				continue
			}
			if err := r.local.Publish(ctx, code, []byte(msg.Payload)); err != nil {
				log.WithError(err).WithField("room_code", code).Warn("Relay failed to fan out message")
			}
		}
	}
}
