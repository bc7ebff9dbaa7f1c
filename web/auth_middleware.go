package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyMiddleware API Key 认证中间件
// 支持 X-API-Key 请求头与 api_key 查询参数（WebSocket 场景）
// 未配置 API Key 时放行全部请求
func apiKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			provided = c.Query("api_key")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			respondError(c, http.StatusUnauthorized, "api.unauthorized")
			c.Abort()
			return
		}

		c.Next()
	}
}
