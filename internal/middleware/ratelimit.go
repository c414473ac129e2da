package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	httpHandler "desk-ledger/internal/handler/http"
	"desk-ledger/internal/repository"
)

// RateLimit 返回一个 Gin 中间件，用于基于客户端 IP 地址进行速率限制。
// 计数保存在 StateRepository 中，多个实例共享同一个窗口。
func RateLimit(state repository.StateRepository, maxRequests int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if state == nil {
		panic("StateRepository cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		exceeded, err := state.CheckRateLimit(c.Request.Context(), clientIP, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", clientIP).Error("RateLimit: check failed")
			httpHandler.ErrorResponse(c, http.StatusInternalServerError, "PersistenceError", "Rate limiting error")
			c.Abort()
			return
		}
		if exceeded {
			httpHandler.ErrorResponse(c, http.StatusTooManyRequests, "RateLimited", "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
