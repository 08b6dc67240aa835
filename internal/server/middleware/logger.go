package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 访问日志中间件
// skipPaths 中的探活请求降为 debug；4xx 记 warn，5xx 记 error
func Logger(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		event := levelFor(path, status, skip)

		event = event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(RequestIDKey)).
			Int("body_size", c.Writer.Size())

		if q := c.Request.URL.RawQuery; q != "" {
			event = event.Str("query", q)
		}
		if bookID := c.Param("id"); bookID != "" {
			event = event.Str("book_id", bookID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("HTTP request")
	}
}

func levelFor(path string, status int, skip map[string]struct{}) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	}
	if _, ok := skip[path]; ok {
		return log.Debug()
	}
	return log.Info()
}
