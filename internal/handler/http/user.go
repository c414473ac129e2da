package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"desk-ledger/internal/service"
)

// UserHandler 处理用户资料相关的请求
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	if userService == nil {
		panic("UserService cannot be nil for UserHandler")
	}
	return &UserHandler{userService: userService}
}

// UpsertUserRequest 是创建/更新用户的请求体
type UpsertUserRequest struct {
	ExternalID string  `json:"externalId" binding:"required"`
	Nickname   *string `json:"nickname"`
	Avatar     *string `json:"avatar"`
}

// UpsertUser 处理 POST /api/users
func (h *UserHandler) UpsertUser(c *gin.Context) {
	var req UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.userService.Upsert(c.Request.Context(), req.ExternalID, req.Nickname, req.Avatar)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}
