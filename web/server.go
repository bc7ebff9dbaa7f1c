package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"papertrader/config"
	"papertrader/database"
	"papertrader/event"
	"papertrader/ledger"
	"papertrader/logger"
	"papertrader/monitor"
	"papertrader/quote"
	"papertrader/storage"
)

// Deps Web 服务依赖集合，由 main 注入
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Ledger     *ledger.Ledger
	Monitor    *monitor.Monitor
	Quotes     quote.Provider
	DB         database.Database
	LogStore   *storage.LogStore
	Events     *event.EventBus
}

// WebServer Web API 服务器
type WebServer struct {
	server *http.Server
	deps   *Deps
	hub    *WebSocketHub
	start  time.Time
}

// NewWebServer 创建 Web 服务器，未启用时返回 nil
func NewWebServer(deps *Deps) *WebServer {
	cfg := deps.Config
	if !cfg.Web.Enabled {
		logger.Info("ℹ️ Web 服务未启用")
		return nil
	}

	// 根据日志级别设置 gin 模式
	if strings.ToUpper(cfg.System.LogLevel) == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(GinLoggerMiddleware(cfg.Web.LogAllRequests))
	router.Use(I18nMiddleware())

	ws := &WebServer{
		deps:  deps,
		hub:   newWebSocketHub(deps.LogStore),
		start: time.Now(),
	}
	ws.setupRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	ws.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return ws
}

// setupRoutes 注册全部路由
func (ws *WebServer) setupRoutes(router *gin.Engine) {
	router.GET("/", ws.handleIndex)

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof 调试端点
	debug := router.Group("/debug/pprof")
	{
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		debug.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		debug.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		debug.GET("/block", gin.WrapH(pprof.Handler("block")))
		debug.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
	}

	api := router.Group("/api")
	api.GET("/health", ws.handleHealth)

	auth := api.Group("")
	auth.Use(apiKeyMiddleware(ws.deps.Config.Web.APIKey))
	{
		// 账户
		auth.GET("/account", ws.handleGetAccount)
		auth.GET("/positions", ws.handleGetPositions)
		auth.GET("/trades", ws.handleGetTrades)
		auth.GET("/performance", ws.handleGetPerformance)
		auth.POST("/order", ws.handlePlaceOrder)

		// 监控
		mon := auth.Group("/monitor")
		{
			mon.GET("/status", ws.handleMonitorStatus)
			mon.POST("/start", ws.handleMonitorStart)
			mon.POST("/stop", ws.handleMonitorStop)
			mon.POST("/pause", ws.handleMonitorPause)
			mon.POST("/resume", ws.handleMonitorResume)
		}

		// 行情
		auth.GET("/quote/:code", ws.handleGetQuote)
		auth.GET("/quotes", ws.handleGetQuotes)

		// 配置
		auth.GET("/config", ws.handleGetConfig)
		auth.PUT("/config", ws.handleUpdateConfig)

		// 事件中心
		events := auth.Group("/events")
		{
			events.GET("", ws.handleGetEvents)
			events.GET("/stats", ws.handleGetEventStats)
			events.GET("/:id", ws.handleGetEventDetail)
		}

		// 日志
		logs := auth.Group("/logs")
		{
			logs.GET("", ws.handleGetLogs)
			logs.GET("/stats", ws.handleGetLogStats)
			logs.POST("/clean", ws.handleCleanLogs)
			logs.POST("/vacuum", ws.handleVacuumLogs)
		}

		// 系统指标
		auth.GET("/system/metrics", ws.handleGetSystemMetrics)
	}

	// WebSocket 实时推送
	router.GET("/ws", ws.handleWebSocket)
}

// Start 启动服务器，ctx 取消时优雅关闭
func (ws *WebServer) Start(ctx context.Context) error {
	if ws == nil {
		return nil
	}

	ws.hub.Start()

	go func() {
		logger.Info("🚀 Web 服务启动: http://%s", ws.server.Addr)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("❌ Web 服务异常退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		ws.Stop()
	}()

	return nil
}

// Stop 优雅停止服务器
func (ws *WebServer) Stop() {
	if ws == nil {
		return
	}
	logger.Info("🛑 停止 Web 服务...")

	ws.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ Web 服务关闭超时: %v", err)
	}
	logger.Info("✅ Web 服务已停止")
}

// Hub 返回 WebSocket 中心，供事件中心注册推送回调
func (ws *WebServer) Hub() *WebSocketHub {
	if ws == nil {
		return nil
	}
	return ws.hub
}
