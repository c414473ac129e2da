package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/domain"
)

// StatusFor 返回错误对应的 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrInsufficientDeskPool):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError 把 Service 返回的错误写成统一的失败响应。
func HandleServiceError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		// 内部错误只记录日志，不把细节暴露给调用方
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, status, domain.ErrorCode(err), "An unexpected error occurred")
		return
	}
	ErrorResponse(c, status, domain.ErrorCode(err), err.Error())
}
