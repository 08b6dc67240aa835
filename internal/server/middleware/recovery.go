package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httputil "livre/internal/pkg/http"
)

// Recovery 捕获 handler 中的 panic，记录堆栈并返回统一错误响应
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error().
				Interface("panic", rec).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("request_id", c.GetString(RequestIDKey)).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				httputil.NewErrorResponse(httputil.CodeInternal, "internal server error"))
		}()
		c.Next()
	}
}
