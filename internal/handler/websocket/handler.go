package websocket

import (
	"context"
	"net/http"

	"desk-ledger/internal/domain"
	httpHandler "desk-ledger/internal/handler/http"
	"desk-ledger/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// RoomGetter 用于在升级前确认房间存在。
type RoomGetter interface {
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
}

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端订阅
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	rooms    RoomGetter
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为 "*" 或空时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, rooms RoomGetter, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if rooms == nil {
		panic("RoomGetter cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			// 非浏览器客户端不带 Origin
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
		rooms:    rooms,
	}
}

// HandleConnection 处理 GET /ws/rooms/:code
// 连接建立后自动订阅该房间，首条消息是当前快照。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	code := c.Param("code")
	logCtx := logrus.WithField("room_code", code)

	// 1. 升级前校验房间，此时还能返回普通 HTTP 错误
	if _, err := h.rooms.GetRoom(c.Request.Context(), code); err != nil {
		logCtx.WithError(err).Warn("WS Handler: Room lookup failed")
		httpHandler.HandleServiceError(c, err)
		return
	}

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写入了错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 3. 创建 Client 并请求订阅
	client := hub.NewClient(h.hub, conn)
	logCtx = logCtx.WithField("client_id", client.ID())
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MsgSubscribe, RoomCode: code, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, closing connection")
		client.CloseConn()
		return
	}

	// 4. 启动读写 goroutine
	go client.Run()
	logCtx.Info("WS Handler: Client connected and subscribed")
}
