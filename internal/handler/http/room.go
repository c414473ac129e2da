package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/service"
)

// RoomHandler 封装了房间和计分相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 是创建房间的请求体
type CreateRoomRequest struct {
	OwnerID     string `json:"ownerId" binding:"required"`
	OwnerName   string `json:"ownerName"`
	OwnerAvatar string `json:"ownerAvatar"`
	RoomName    string `json:"roomName"`
}

// JoinRoomRequest 是加入房间的请求体
type JoinRoomRequest struct {
	ExternalID string `json:"externalId" binding:"required"`
	Nickname   string `json:"nickname"`
	Avatar     string `json:"avatar"`
}

// ScoreRequest 是 spend / reclaim 的请求体。Amount 用指针区分缺省和 0。
type ScoreRequest struct {
	ExternalID string `json:"externalId" binding:"required"`
	Nickname   string `json:"nickname"`
	Amount     *int64 `json:"amount" binding:"required"`
}

// UpdateMemberRequest 是资料更新的请求体，未提供的字段不修改
type UpdateMemberRequest struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// CreateRoom 处理 POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	room, err := h.roomService.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		OwnerID:     req.OwnerID,
		OwnerName:   req.OwnerName,
		OwnerAvatar: req.OwnerAvatar,
		RoomName:    req.RoomName,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, room)
}

// GetRoom 处理 GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// JoinRoom 处理 POST /api/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	room, err := h.roomService.Join(c.Request.Context(), c.Param("code"), service.JoinInput{
		ExternalID: req.ExternalID,
		Nickname:   req.Nickname,
		Avatar:     req.Avatar,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// Spend 处理 POST /api/rooms/:code/spend
func (h *RoomHandler) Spend(c *gin.Context) {
	h.score(c, h.roomService.Spend)
}

// Reclaim 处理 POST /api/rooms/:code/reclaim
func (h *RoomHandler) Reclaim(c *gin.Context) {
	h.score(c, h.roomService.Reclaim)
}

type scoreFunc func(ctx context.Context, code string, in service.ScoreInput) (*domain.Room, error)

func (h *RoomHandler) score(c *gin.Context, op scoreFunc) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	room, err := op(c.Request.Context(), c.Param("code"), service.ScoreInput{
		ExternalID: req.ExternalID,
		Nickname:   req.Nickname,
		Amount:     *req.Amount,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// UpdateMember 处理 PATCH /api/rooms/:code/members/:externalId
func (h *RoomHandler) UpdateMember(c *gin.Context) {
	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	room, err := h.roomService.UpdateMember(c.Request.Context(), c.Param("code"), c.Param("externalId"), req.Nickname, req.Avatar)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}
