package middleware

import (
	"github.com/gin-gonic/gin"

	"livre/internal/pkg/id"
)

const (
	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey gin.Context 中保存请求ID的键
	RequestIDKey = "request_id"
)

// RequestID 请求ID中间件：沿用客户端传入的ID，否则生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = id.New()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
