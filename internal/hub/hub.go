package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// 每个客户端发送队列的缓冲大小
	sendBufferSize = 256
)

// Hub 内部消息类型。注销不经过消息通道，见 Client.ReadPump。
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// HubMessage 定义了在 Hub 内部通道传递的消息
type HubMessage struct {
	Type     string // subscribe / unsubscribe
	RoomCode string // 频道 key
	Client   *Client
}

// SnapshotSource 提供订阅时发送的首条房间快照 (已编码的消息)。
// 实现必须在该房间的变更队列里读取快照并调用 deliver，
// deliver 返回之前该房间不能有新的广播。
type SnapshotSource interface {
	Snapshot(ctx context.Context, roomCode string, deliver func(payload []byte)) error
}

// Hub 维护房间频道与本实例上的连接之间的订阅关系，并把消息扇出给订阅者。
type Hub struct {
	// 内部通道，处理所有来自 Client 的订阅事件
	messageChan chan HubMessage

	// map[roomCode]map[*Client]bool
	rooms map[string]map[*Client]bool
	// 每个客户端订阅了哪些房间，注销时使用
	clients map[*Client]map[string]bool
	// 保护 rooms 和 clients 的读写锁
	roomsMu sync.RWMutex

	snapshots SnapshotSource
}

// NewHub 创建 Hub。snapshots 为 nil 时订阅不发送首条快照。
func NewHub(snapshots SnapshotSource) *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		clients:     make(map[*Client]map[string]bool),
		snapshots:   snapshots,
	}
}

// Run 启动 Hub 的主事件循环，直到 ctx 结束。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")
	defer log.Info("Hub is shutting down...")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MsgSubscribe:
				if h.snapshots == nil {
					h.Subscribe(msg.Client, msg.RoomCode)
				} else if !h.isSubscribed(msg.Client, msg.RoomCode) {
					go h.subscribeWithSnapshot(ctx, msg.Client, msg.RoomCode)
				}
			case MsgUnsubscribe:
				h.Unsubscribe(msg.Client, msg.RoomCode)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		}
	}
}

// Subscribe 把 client 加入 roomCode 频道。已订阅时返回 false。
func (h *Hub) Subscribe(client *Client, roomCode string) bool {
	if client == nil || roomCode == "" {
		return false
	}
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	return h.subscribeLocked(client, roomCode)
}

func (h *Hub) isSubscribed(client *Client, roomCode string) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.rooms[roomCode][client]
}

// subscribeLocked 要求调用方持有 roomsMu 写锁。
func (h *Hub) subscribeLocked(client *Client, roomCode string) bool {
	if client.closed {
		return false
	}
	if h.rooms[roomCode][client] {
		return false
	}
	if _, ok := h.rooms[roomCode]; !ok {
		h.rooms[roomCode] = make(map[*Client]bool)
	}
	h.rooms[roomCode][client] = true
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[string]bool)
	}
	h.clients[client][roomCode] = true
	logrus.WithFields(logrus.Fields{
		"room_code": roomCode,
		"client_id": client.ID(),
		"action":    "subscribe",
	}).Debug("Client subscribed")
	return true
}

// Unsubscribe 把 client 移出 roomCode 频道。
func (h *Hub) Unsubscribe(client *Client, roomCode string) {
	if client == nil {
		return
	}
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	h.removeLocked(client, roomCode)
}

// Unregister 取消 client 的全部订阅并关闭其发送通道，可重复调用。
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for code := range h.clients[client] {
		h.removeLocked(client, code)
	}
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
		logrus.WithField("client_id", client.ID()).Info("Client unregistered from Hub")
	}
}

func (h *Hub) removeLocked(client *Client, roomCode string) {
	roomClients, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(roomClients, client)
	if len(roomClients) == 0 {
		delete(h.rooms, roomCode)
	}
	if subs, ok := h.clients[client]; ok {
		delete(subs, roomCode)
	}
}

// Publish 把 payload 发送给 channelKey 频道当前的所有订阅者。
// 发送是非阻塞的，发送队列已满的客户端会丢失这条消息。
func (h *Hub) Publish(_ context.Context, channelKey string, payload []byte) error {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	roomClients := h.rooms[channelKey]
	if len(roomClients) == 0 {
		return nil
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code":       channelKey,
		"message_size":    len(payload),
		"recipient_count": len(roomClients),
	})
	logCtx.Debug("Broadcasting message to clients")

	for client := range roomClients {
		select {
		case client.send <- payload:
		default:
			logCtx.WithField("client_id", client.ID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
	return nil
}

// Subscribers 返回频道当前的订阅者数量。
func (h *Hub) Subscribers(roomCode string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomCode])
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_code":    msg.RoomCode,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// subscribeWithSnapshot 读取房间快照，并在同一个临界区内把快照放进发送队列、
// 让订阅生效。之后的广播一定排在快照后面。
func (h *Hub) subscribeWithSnapshot(ctx context.Context, client *Client, roomCode string) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": roomCode,
		"client_id": client.ID(),
		"operation": "subscribeWithSnapshot",
	})

	err := h.snapshots.Snapshot(ctx, roomCode, func(payload []byte) {
		h.roomsMu.Lock()
		defer h.roomsMu.Unlock()
		if !h.subscribeLocked(client, roomCode) {
			return
		}
		select {
		case client.send <- payload:
			logCtx.Debug("Snapshot message queued before live updates")
		default:
			logCtx.Warn("Client send channel full when trying to send snapshot, message dropped")
		}
	})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to load room snapshot")
		errMsg, _ := json.Marshal(map[string]string{
			"type":     "error",
			"roomCode": roomCode,
			"message":  err.Error(),
		})
		h.sendTo(client, errMsg)
	}
}

// sendTo 向单个客户端非阻塞发送，客户端已注销时返回 false。
func (h *Hub) sendTo(client *Client, payload []byte) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if client.closed {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}
