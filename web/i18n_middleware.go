package web

import (
	"strings"

	"github.com/gin-gonic/gin"

	pti18n "papertrader/i18n"
)

// I18nMiddleware 解析请求的 Accept-Language 头并设置到上下文
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := parseAcceptLanguage(c.GetHeader("Accept-Language"))
		c.Set("language", lang)
		c.Next()
	}
}

// parseAcceptLanguage 解析 Accept-Language 头
// 示例: "zh-CN,zh;q=0.9,en;q=0.8" -> "zh-CN"
func parseAcceptLanguage(acceptLang string) string {
	if acceptLang == "" {
		return "zh-CN"
	}

	first := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	if idx := strings.Index(first, ";"); idx != -1 {
		first = first[:idx]
	}
	return normalizeLanguage(strings.TrimSpace(first))
}

// normalizeLanguage 标准化语言代码，仅区分中英文
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(lang)
	switch {
	case strings.HasPrefix(lang, "en"):
		return "en-US"
	default:
		return "zh-CN"
	}
}

// GetLanguage 从上下文获取语言
func GetLanguage(c *gin.Context) string {
	if lang, exists := c.Get("language"); exists {
		if l, ok := lang.(string); ok {
			return l
		}
	}
	return "zh-CN"
}

// T 按请求语言翻译消息
func T(c *gin.Context, key string, data ...interface{}) string {
	return pti18n.TWithLang(GetLanguage(c), key, data...)
}
