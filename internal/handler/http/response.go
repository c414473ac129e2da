package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 是失败响应中的 error 字段。
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope 是所有接口统一的响应格式。
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func ErrorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

func SuccessResponse(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// bindError 把请求体绑定失败写成 400。
func bindError(c *gin.Context, err error) {
	ErrorResponse(c, http.StatusBadRequest, "ValidationError", "invalid request body: "+err.Error())
}
