package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"papertrader/logger"
)

// GinLoggerMiddleware 请求日志中间件
// logAll 为 false 时仅记录 4xx/5xx 响应
func GinLoggerMiddleware(logAll bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if status < 400 && !logAll {
			return
		}

		msg := fmt.Sprintf("[GIN] %d | %v | %s | %-7s %s",
			status, time.Since(start), c.ClientIP(), c.Request.Method, path)
		if len(c.Errors) > 0 {
			msg += " | " + c.Errors.String()
		}
		logger.WriteWebLog(msg)
	}
}
