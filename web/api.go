package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papertrader/config"
	"papertrader/database"
	"papertrader/event"
	"papertrader/ledger"
	"papertrader/logger"
	"papertrader/metrics"
	"papertrader/monitor"
	"papertrader/storage"
	"papertrader/utils"
)

// Version 程序版本，编译时通过 -ldflags 注入
var Version = "dev"

// respondError 返回国际化的错误响应
func respondError(c *gin.Context, status int, key string, errs ...error) {
	body := gin.H{"error": T(c, key), "code": key}
	if len(errs) > 0 && errs[0] != nil {
		body["detail"] = errs[0].Error()
	}
	c.JSON(status, body)
}

// handleIndex 服务信息
func (ws *WebServer) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "papertrader",
		"version": Version,
		"uptime":  int64(time.Since(ws.start).Seconds()),
		"time":    utils.NowCST().Format("2006-01-02 15:04:05"),
	})
}

// handleHealth 健康检查，校验数据库连通性
func (ws *WebServer) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbOK := true
	if ws.deps.DB != nil {
		if err := ws.deps.DB.Ping(ctx); err != nil {
			dbOK = false
		}
	}

	if !dbOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": true})
}

// === 账户 ===

// handleGetAccount 获取账户资产概览
func (ws *WebServer) handleGetAccount(c *gin.Context) {
	c.JSON(http.StatusOK, ws.deps.Ledger.GetPortfolio())
}

// positionView 持仓响应，附带浮动盈亏与当前可卖股数
type positionView struct {
	*ledger.Position
	MarketValue      float64 `json:"market_value"`
	UnrealizedPL     float64 `json:"unrealized_pl"`
	UnrealizedPLRate float64 `json:"unrealized_pl_rate"`
	Sellable         int64   `json:"sellable"`
}

// handleGetPositions 获取全部持仓
func (ws *WebServer) handleGetPositions(c *gin.Context) {
	now := utils.NowCST()
	positions := ws.deps.Ledger.GetPositions()

	views := make([]*positionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, &positionView{
			Position:         pos,
			MarketValue:      pos.MarketValue(),
			UnrealizedPL:     pos.UnrealizedPL(),
			UnrealizedPLRate: pos.UnrealizedPLRate(),
			Sellable:         pos.SellableQuantity(now),
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": views, "count": len(views)})
}

// handleGetTrades 查询成交记录，支持按代码、方向和时间范围筛选
func (ws *WebServer) handleGetTrades(c *gin.Context) {
	filter := parseTradeFilter(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	trades, err := ws.deps.DB.GetTrades(ctx, filter)
	if err != nil {
		logger.Error("❌ 查询成交记录失败: %v", err)
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// handleGetPerformance 基于全部成交记录的绩效统计
func (ws *WebServer) handleGetPerformance(c *gin.Context) {
	trades := ws.deps.Ledger.GetTrades(0)
	c.JSON(http.StatusOK, ledger.ComputePerformance(trades))
}

// orderRequest 手动委托请求
type orderRequest struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name"`
	Action   string  `json:"action" binding:"required"`
	Quantity int64   `json:"quantity" binding:"required"`
	Price    float64 `json:"price"`
}

// handlePlaceOrder 手动下单。未指定价格时按最新行情成交
func (ws *WebServer) handlePlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "api.invalid_request", err)
		return
	}
	action := strings.ToLower(req.Action)
	if action != "buy" && action != "sell" {
		respondError(c, http.StatusBadRequest, "api.invalid_request")
		return
	}

	price := req.Price
	name := req.Name
	if price <= 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		q, err := ws.deps.Quotes.GetQuote(ctx, req.Code)
		if err != nil {
			logger.Warn("⚠️ 手动下单获取行情失败 %s: %v", req.Code, err)
			respondError(c, http.StatusBadGateway, "api.internal_error", err)
			return
		}
		price = q.Price
		if name == "" {
			name = q.Name
		}
	}

	result := ws.deps.Ledger.Execute(&ledger.Order{
		Code:     req.Code,
		Name:     name,
		Action:   action,
		Quantity: req.Quantity,
		Price:    price,
		Reason:   "手动下单",
	})

	ws.publishOrderResult(req.Code, name, action, req.Quantity, price, result)

	// 业务拒绝返回 success=false 的结果体，不用 HTTP 错误码
	c.JSON(http.StatusOK, result)
}

// publishOrderResult 将手动下单结果写入事件总线与指标
func (ws *WebServer) publishOrderResult(code, name, action string, quantity int64, price float64, result *ledger.ExecutionResult) {
	pm := metrics.GetPrometheusMetrics()

	if !result.Success {
		pm.RecordOrderReject(code, action, string(result.Reject))
		if ws.deps.Events != nil {
			ws.deps.Events.Publish(&event.Event{
				Type: event.EventTypeTradeFailed,
				Data: map[string]interface{}{
					"code": code, "name": name, "action": action,
					"quantity": quantity, "price": price,
					"reason": string(result.Reject), "message": result.Message,
				},
			})
		}
		return
	}

	trade := result.Trade
	pm.RecordOrder(code, action, "filled")
	pm.RecordTrade(code, action, trade.Amount, trade.Commission)

	if ws.deps.Events != nil {
		ws.deps.Events.Publish(&event.Event{
			Type: event.EventTypeTradeExecuted,
			Data: map[string]interface{}{
				"code": code, "name": name, "action": action,
				"quantity": trade.Quantity, "price": trade.Price,
				"amount": trade.Amount, "commission": trade.Commission,
				"realized_pl": trade.RealizedPL, "reason": trade.Reason,
			},
		})
		if !result.Persisted {
			ws.deps.Events.Publish(&event.Event{
				Type: event.EventTypePersistenceFailed,
				Data: map[string]interface{}{"code": code, "error": result.PersistErr},
			})
		}
	}
}

// parseTradeFilter 从查询参数构建成交记录过滤器
func parseTradeFilter(c *gin.Context) *database.TradeFilter {
	filter := &database.TradeFilter{
		Code:   c.Query("code"),
		Action: strings.ToLower(c.Query("action")),
	}
	if t, err := time.Parse(time.RFC3339, c.Query("start_time")); err == nil {
		filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, c.Query("end_time")); err == nil {
		filter.EndTime = &t
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return filter
}

// parseEventFilter 从查询参数构建事件过滤器
func parseEventFilter(c *gin.Context) *database.EventFilter {
	filter := &database.EventFilter{
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
		Source:   c.Query("source"),
		Code:     c.Query("code"),
	}
	if t, err := time.Parse(time.RFC3339, c.Query("start_time")); err == nil {
		filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, c.Query("end_time")); err == nil {
		filter.EndTime = &t
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return filter
}

// === 监控 ===

func (ws *WebServer) handleMonitorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ws.deps.Monitor.GetStatus())
}

func (ws *WebServer) handleMonitorStart(c *gin.Context) {
	if err := ws.deps.Monitor.Start(); err != nil {
		respondError(c, http.StatusConflict, "api.monitor_already_running", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (ws *WebServer) handleMonitorStop(c *gin.Context) {
	ws.deps.Monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (ws *WebServer) handleMonitorPause(c *gin.Context) {
	if err := ws.deps.Monitor.Pause(); err != nil {
		respondError(c, http.StatusConflict, "api.monitor_not_running", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (ws *WebServer) handleMonitorResume(c *gin.Context) {
	if err := ws.deps.Monitor.Resume(); err != nil {
		respondError(c, http.StatusConflict, "api.monitor_not_running", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

// === 行情 ===

// handleGetQuote 获取单只证券实时行情
func (ws *WebServer) handleGetQuote(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	q, err := ws.deps.Quotes.GetQuote(ctx, c.Param("code"))
	if err != nil {
		respondError(c, http.StatusBadGateway, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// handleGetQuotes 批量行情，codes 为逗号分隔的证券代码
func (ws *WebServer) handleGetQuotes(c *gin.Context) {
	codesParam := c.Query("codes")
	if codesParam == "" {
		respondError(c, http.StatusBadRequest, "api.invalid_request")
		return
	}
	codes := strings.Split(codesParam, ",")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	quotes, err := ws.deps.Quotes.GetQuotes(ctx, codes)
	if err != nil {
		respondError(c, http.StatusBadGateway, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "count": len(quotes)})
}

// === 配置 ===

// handleGetConfig 返回脱敏后的当前配置
func (ws *WebServer) handleGetConfig(c *gin.Context) {
	cfg := *ws.deps.Config

	// 密钥脱敏后返回
	cfg.AI.APIKey = maskSecret(cfg.AI.APIKey)
	cfg.Web.APIKey = maskSecret(cfg.Web.APIKey)
	channels := make([]config.NotifyChannelConfig, len(cfg.Notification.Channels))
	copy(channels, cfg.Notification.Channels)
	for i := range channels {
		channels[i].Secret = maskSecret(channels[i].Secret)
		channels[i].BotToken = maskSecret(channels[i].BotToken)
	}
	cfg.Notification.Channels = channels

	c.JSON(http.StatusOK, cfg)
}

// handleUpdateConfig 接收 YAML 配置并写回配置文件
// 文件写入后由配置监听器触发热更新
func (ws *WebServer) handleUpdateConfig(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "api.invalid_request", err)
		return
	}

	newCfg, err := config.LoadConfigFromBytes(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "api.invalid_request", err)
		return
	}

	if ws.deps.ConfigPath == "" {
		respondError(c, http.StatusServiceUnavailable, "api.internal_error")
		return
	}
	if err := config.SaveConfig(newCfg, ws.deps.ConfigPath); err != nil {
		logger.Error("❌ 写入配置文件失败: %v", err)
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}

	logger.Info("✅ 配置已通过 API 更新: %s", ws.deps.ConfigPath)
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// maskSecret 密钥脱敏，只保留前4位
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// === 事件中心 ===

func (ws *WebServer) handleGetEvents(c *gin.Context) {
	filter := parseEventFilter(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := ws.deps.DB.GetEvents(ctx, filter)
	if err != nil {
		logger.Error("❌ 查询事件失败: %v", err)
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (ws *WebServer) handleGetEventStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := ws.deps.DB.GetEventStats(ctx)
	if err != nil {
		logger.Error("❌ 查询事件统计失败: %v", err)
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ws *WebServer) handleGetEventDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "api.invalid_request")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := ws.deps.DB.GetEventByID(ctx, id)
	if err != nil {
		respondError(c, http.StatusNotFound, "api.invalid_request")
		return
	}
	c.JSON(http.StatusOK, record)
}

// === 日志 ===

func (ws *WebServer) handleGetLogs(c *gin.Context) {
	if ws.deps.LogStore == nil {
		respondError(c, http.StatusServiceUnavailable, "api.internal_error")
		return
	}

	query := storage.LogQuery{
		Level:   c.Query("level"),
		Keyword: c.Query("keyword"),
	}
	if t, err := time.Parse(time.RFC3339, c.Query("start_time")); err == nil {
		query.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, c.Query("end_time")); err == nil {
		query.EndTime = t
	}
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := ws.deps.LogStore.GetLogs(query)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
}

func (ws *WebServer) handleGetLogStats(c *gin.Context) {
	if ws.deps.LogStore == nil {
		respondError(c, http.StatusServiceUnavailable, "api.internal_error")
		return
	}
	stats, err := ws.deps.LogStore.GetStats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ws *WebServer) handleCleanLogs(c *gin.Context) {
	if ws.deps.LogStore == nil {
		respondError(c, http.StatusServiceUnavailable, "api.internal_error")
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	deleted, err := ws.deps.LogStore.CleanOldLogs(days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	logger.Info("🧹 API 清理日志: 删除 %d 条 (早于 %d 天)", deleted, days)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (ws *WebServer) handleVacuumLogs(c *gin.Context) {
	if ws.deps.LogStore == nil {
		respondError(c, http.StatusServiceUnavailable, "api.internal_error")
		return
	}
	if err := ws.deps.LogStore.Vacuum(); err != nil {
		respondError(c, http.StatusInternalServerError, "api.internal_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// === 系统指标 ===

// handleGetSystemMetrics 返回实时采样与最近的历史采样
func (ws *WebServer) handleGetSystemMetrics(c *gin.Context) {
	sample, err := monitor.CollectSystemSample()
	if err != nil {
		logger.Warn("⚠️ 采集系统指标失败: %v", err)
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "60"))
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "1"))

	var history interface{}
	if ws.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		since := utils.NowCST().Add(-time.Duration(hours) * time.Hour)
		if rows, err := ws.deps.DB.GetSystemMetrics(ctx, since, limit); err == nil {
			history = rows
		}
	}

	c.JSON(http.StatusOK, gin.H{"current": sample, "history": history})
}
