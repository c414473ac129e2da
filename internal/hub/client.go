package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte // 用于向此客户端发送消息的缓冲通道

	closed bool // send 是否已关闭，由 hub.roomsMu 保护
}

// inboundFrame 是客户端发来的订阅控制消息。
type inboundFrame struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// ID 返回连接 ID。
func (c *Client) ID() string { return c.id }

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logger() *logrus.Entry {
	return logrus.WithField("client_id", c.id)
}

// ReadPump 读取客户端的订阅控制消息并转交给 Hub。
// 它在自己的 goroutine 中运行，退出时注销客户端。
func (c *Client) ReadPump() {
	defer func() {
		// 不经过 messageChan，确保 Hub 退出后也能关闭 send
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logger().Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.handleFrame(message)
	}
}

// handleFrame 解析一条入站消息，只接受 subscribe / unsubscribe。
func (c *Client) handleFrame(message []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.logger().WithError(err).Debug("Ignoring malformed client frame")
		return
	}
	switch frame.Type {
	case MsgSubscribe, MsgUnsubscribe:
		if frame.RoomCode == "" {
			return
		}
		c.hub.QueueMessage(HubMessage{Type: frame.Type, RoomCode: frame.RoomCode, Client: c})
	default:
		c.logger().WithField("frame_type", frame.Type).Debug("Ignoring unknown client frame")
	}
}

// WritePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			// 定时发送 Ping 以保持连接并检测断开
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

// CloseConn 关闭底层连接。
func (c *Client) CloseConn() { c.conn.Close() }
