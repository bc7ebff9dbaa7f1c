package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"papertrader/ai"
	"papertrader/config"
	"papertrader/event"
	"papertrader/ledger"
	"papertrader/logger"
	"papertrader/market"
	"papertrader/metrics"
	"papertrader/quote"
	"papertrader/utils"
)

// Monitor 行情监控与决策循环
// 每个周期：拉取行情 -> 估值 -> 止损止盈 -> AI决策 -> 自动交易
type Monitor struct {
	mu     sync.RWMutex
	cfg    *config.Config
	ledger *ledger.Ledger
	quotes quote.Provider
	ai     ai.DecisionProvider // 可为 nil（未启用AI决策）
	bus    *event.EventBus
	pm     *metrics.PrometheusMetrics

	state       State
	hoursPaused bool // 非交易时段自动暂停标记
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	now         func() time.Time

	errors         *errorRing
	totalChecks    atomic.Int64
	totalDecisions atomic.Int64
	totalTrades    atomic.Int64
	startedAt      time.Time
	lastCheckAt    atomic.Int64 // unix 纳秒
}

// NewMonitor 创建监控器
func NewMonitor(cfg *config.Config, lg *ledger.Ledger, qp quote.Provider, dp ai.DecisionProvider, bus *event.EventBus) *Monitor {
	return &Monitor{
		cfg:    cfg,
		ledger: lg,
		quotes: qp,
		ai:     dp,
		bus:    bus,
		pm:     metrics.GetPrometheusMetrics(),
		state:  StateIdle,
		now:    utils.NowCST,
		errors: newErrorRing(cfg.Monitor.ErrorHistorySize),
	}
}

// SetClock 注入时钟（测试用）
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Start 启动监控循环
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning || m.state == StatePaused {
		return fmt.Errorf("监控器已经在运行")
	}
	if len(m.cfg.Stocks) == 0 {
		return fmt.Errorf("监控列表为空，无法启动")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning
	m.hoursPaused = false
	m.startedAt = m.now()

	m.wg.Add(1)
	go m.loop(ctx)

	logger.Info("🚀 监控器已启动 (周期: %ds, 股票数: %d, AI决策: %v, 自动交易: %v)",
		m.cfg.Monitor.IntervalSeconds, len(m.cfg.Stocks),
		m.cfg.Monitor.EnableAIDecision, m.cfg.Monitor.EnableAutoTrade)

	m.bus.Publish(&event.Event{
		Type: event.EventTypeMonitorStarted,
		Data: map[string]interface{}{
			"stocks":   m.stockCodesLocked(),
			"interval": m.cfg.Monitor.IntervalSeconds,
		},
	})
	return nil
}

// Stop 停止监控循环，等待当前周期结束
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateRunning && m.state != StatePaused {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()

	logger.Info("🛑 监控器已停止")
	m.bus.Publish(&event.Event{
		Type: event.EventTypeMonitorStopped,
		Data: map[string]interface{}{
			"total_checks": m.totalChecks.Load(),
			"total_trades": m.totalTrades.Load(),
		},
	})
}

// Pause 手动暂停（循环继续运行但跳过检查）
func (m *Monitor) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return fmt.Errorf("监控器未在运行")
	}
	m.state = StatePaused

	logger.Info("⏸️ 监控器已手动暂停")
	m.bus.Publish(&event.Event{
		Type: event.EventTypeMonitorPaused,
		Data: map[string]interface{}{"reason": "manual"},
	})
	return nil
}

// Resume 从手动暂停恢复
func (m *Monitor) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused {
		return fmt.Errorf("监控器未处于暂停状态")
	}
	m.state = StateRunning
	// 手动恢复同时清除非交易时段标记，仍在盘外时下个周期会重新暂停
	m.hoursPaused = false

	logger.Info("▶️ 监控器已恢复运行")
	m.bus.Publish(&event.Event{
		Type: event.EventTypeMonitorResumed,
		Data: map[string]interface{}{"reason": "manual"},
	})
	return nil
}

// UpdateConfig 热更新配置（股票列表与开关即时生效）
func (m *Monitor) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	logger.Info("✅ 监控配置已更新 (股票数: %d)", len(cfg.Stocks))
}

// GetStatus 获取状态快照
func (m *Monitor) GetStatus() *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := &Status{
		State:          m.state,
		StartedAt:      m.startedAt,
		IntervalSec:    m.cfg.Monitor.IntervalSeconds,
		Stocks:         m.stockCodesLocked(),
		AIEnabled:      m.cfg.Monitor.EnableAIDecision,
		AutoTrade:      m.cfg.Monitor.EnableAutoTrade,
		TotalChecks:    m.totalChecks.Load(),
		TotalDecisions: m.totalDecisions.Load(),
		TotalTrades:    m.totalTrades.Load(),
		RecentErrors:   m.errors.snapshot(),
	}
	if ns := m.lastCheckAt.Load(); ns > 0 {
		status.LastCheckAt = time.Unix(0, ns)
	}
	return status
}

func (m *Monitor) stockCodesLocked() []string {
	codes := make([]string, 0, len(m.cfg.Stocks))
	for _, s := range m.cfg.Stocks {
		codes = append(codes, s.Code)
	}
	return codes
}

// loop 主循环
func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	// 启动后立即执行一次
	m.runCycle(ctx)

	m.mu.RLock()
	interval := time.Duration(m.cfg.Monitor.IntervalSeconds) * time.Second
	m.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycle(ctx)

			// 周期可能被热更新，按需调整定时器
			m.mu.RLock()
			next := time.Duration(m.cfg.Monitor.IntervalSeconds) * time.Second
			m.mu.RUnlock()
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// runCycle 执行一个检查周期
func (m *Monitor) runCycle(ctx context.Context) {
	m.mu.RLock()
	cfg := m.cfg
	state := m.state
	hoursPaused := m.hoursPaused
	now := m.now()
	m.mu.RUnlock()

	// 手动暂停跳过本周期，非交易时段暂停由下面的门控自行恢复
	if state == StatePaused && !hoursPaused {
		return
	}

	// 非交易时段自动转入 Paused，回到交易时段转回 Running
	if cfg.Monitor.TradingHoursOnly {
		inHours := market.IsTradingHours(now)
		m.mu.Lock()
		switch {
		case !inHours && !m.hoursPaused:
			m.hoursPaused = true
			m.state = StatePaused
			m.mu.Unlock()
			logger.Info("⏸️ 当前非交易时段，监控暂停")
			m.bus.Publish(&event.Event{
				Type: event.EventTypeMonitorPaused,
				Data: map[string]interface{}{"reason": "off_hours"},
			})
			return
		case inHours && m.hoursPaused:
			m.hoursPaused = false
			m.state = StateRunning
			m.mu.Unlock()
			logger.Info("▶️ 进入交易时段，监控恢复")
			m.bus.Publish(&event.Event{
				Type: event.EventTypeMonitorResumed,
				Data: map[string]interface{}{"reason": "trading_hours"},
			})
		case !inHours:
			m.mu.Unlock()
			return
		default:
			m.mu.Unlock()
		}
	}

	m.lastCheckAt.Store(now.UnixNano())

	// 批量拉取行情
	codes := make([]string, 0, len(cfg.Stocks))
	for _, s := range cfg.Stocks {
		codes = append(codes, s.Code)
	}

	fetchStart := time.Now()
	quoteCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Quote.TimeoutSeconds)*time.Second)
	quotesMap, err := m.quotes.GetQuotes(quoteCtx, codes)
	cancel()

	if err != nil {
		m.pm.RecordQuoteFetch("error", time.Since(fetchStart))
		logger.Error("❌ 批量获取行情失败: %v", err)
		m.recordError("", "quote", err.Error())
		m.bus.Publish(&event.Event{
			Type: event.EventTypeQuoteUnavailable,
			Data: map[string]interface{}{"error": err.Error()},
		})
		return
	}
	m.pm.RecordQuoteFetch("success", time.Since(fetchStart))

	// 用新行情重估持仓
	prices := make(map[string]float64, len(quotesMap))
	maxAge := time.Duration(cfg.Monitor.QuoteMaxAgeSec) * time.Second
	for code, q := range quotesMap {
		if q.Price > 0 && !q.IsStale(maxAge, now) {
			prices[code] = q.Price
			m.pm.SetCurrentPrice(code, q.Price)
		}
	}
	m.ledger.Revalue(prices)
	m.updateAccountMetrics()

	// 逐只检查，单只失败不影响其他
	for _, stock := range cfg.Stocks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.totalChecks.Add(1)
		q, ok := quotesMap[stock.Code]
		if !ok || q.Price <= 0 || q.IsStale(maxAge, now) {
			m.pm.RecordMonitorCheck(stock.Code, "quote_unavailable")
			m.recordError(stock.Code, "quote", "行情缺失或已过期")
			m.bus.Publish(&event.Event{
				Type: event.EventTypeQuoteUnavailable,
				Data: map[string]interface{}{"code": stock.Code, "name": stock.Name},
			})
			continue
		}

		m.checkStock(ctx, cfg, &stock, q, now)
	}
}

// checkStock 单只证券的检查流程，止损止盈优先于AI决策
func (m *Monitor) checkStock(ctx context.Context, cfg *config.Config, stock *config.StockConfig, q *quote.Quote, now time.Time) {
	pos := m.ledger.GetPosition(stock.Code)

	if pos != nil && pos.Quantity > 0 {
		plRate := (q.Price - pos.AvgCost) / pos.AvgCost

		if stock.StopLossRate > 0 && plRate <= -stock.StopLossRate {
			m.triggerRiskSell(cfg, stock, pos, q, now, "stop_loss", plRate)
			return
		}
		if stock.TakeProfitRate > 0 && plRate >= stock.TakeProfitRate {
			m.triggerRiskSell(cfg, stock, pos, q, now, "take_profit", plRate)
			return
		}
	}

	if !cfg.Monitor.EnableAIDecision || m.ai == nil {
		m.pm.RecordMonitorCheck(stock.Code, "ok")
		return
	}

	decision := m.requestDecision(ctx, cfg, stock, pos, q, now)
	if decision == nil {
		return
	}

	m.totalDecisions.Add(1)
	m.bus.Publish(&event.Event{
		Type: event.EventTypeDecisionMade,
		Data: map[string]interface{}{
			"code":       stock.Code,
			"name":       stock.Name,
			"action":     string(decision.Action),
			"quantity":   decision.Quantity,
			"confidence": decision.Confidence,
			"reasoning":  decision.Reasoning,
			"price":      q.Price,
		},
	})

	if cfg.Monitor.EnableAutoTrade && decision.Action != ai.ActionHold {
		m.executeDecision(cfg, stock, pos, q, decision, now)
	}
	m.pm.RecordMonitorCheck(stock.Code, "ok")
}

// triggerRiskSell 止损止盈卖出（卖出全部可卖股数）
func (m *Monitor) triggerRiskSell(cfg *config.Config, stock *config.StockConfig, pos *ledger.Position, q *quote.Quote, now time.Time, kind string, plRate float64) {
	m.pm.RecordRiskTrigger(stock.Code, kind)

	eventType := event.EventTypeStopLoss
	reason := "止损触发"
	if kind == "take_profit" {
		eventType = event.EventTypeTakeProfit
		reason = "止盈触发"
	}

	logger.Warn("⚠️ %s: %s(%s) 浮动盈亏率 %.2f%%, 现价 %.2f, 成本 %.2f",
		reason, stock.Name, stock.Code, plRate*100, q.Price, pos.AvgCost)

	m.bus.Publish(&event.Event{
		Type: eventType,
		Data: map[string]interface{}{
			"code":     stock.Code,
			"name":     stock.Name,
			"price":    q.Price,
			"avg_cost": pos.AvgCost,
			"pl_rate":  plRate,
		},
	})

	sellable := pos.SellableQuantity(now)
	if sellable <= 0 {
		logger.Warn("⚠️ %s(%s) 当前无可卖股数（T+1限制），跳过卖出", stock.Name, stock.Code)
		m.pm.RecordMonitorCheck(stock.Code, "risk_no_sellable")
		return
	}

	m.submitOrder(&ledger.Order{
		Code:     stock.Code,
		Name:     stock.Name,
		Action:   "sell",
		Quantity: sellable,
		Price:    q.Price,
		Reason:   reason,
	})
	m.pm.RecordMonitorCheck(stock.Code, kind)
}

// requestDecision 调用AI决策，失败时返回 nil
func (m *Monitor) requestDecision(ctx context.Context, cfg *config.Config, stock *config.StockConfig, pos *ledger.Position, q *quote.Quote, now time.Time) *ai.Decision {
	var sellable int64
	if pos != nil {
		sellable = pos.SellableQuantity(now)
	}

	sc := &ai.StockContext{
		Quote:     q,
		Position:  pos,
		Portfolio: m.ledger.GetPortfolio(),
		Sellable:  sellable,
	}

	aiCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Monitor.AITimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	decision, err := m.ai.Decide(aiCtx, sc)
	if err != nil {
		m.pm.RecordMonitorCheck(stock.Code, "ai_error")
		logger.Error("❌ AI决策失败: %s(%s): %v", stock.Name, stock.Code, err)
		m.recordError(stock.Code, "ai", err.Error())
		m.bus.Publish(&event.Event{
			Type: event.EventTypeAIUnavailable,
			Data: map[string]interface{}{"code": stock.Code, "error": err.Error()},
		})
		return nil
	}

	m.pm.RecordAIDecision(stock.Code, string(decision.Action), time.Since(start))
	logger.Info("🤖 AI决策: %s(%s) %s 数量=%d 置信度=%.2f",
		stock.Name, stock.Code, decision.Action, decision.Quantity, decision.Confidence)
	return decision
}

// executeDecision 根据AI决策提交委托
func (m *Monitor) executeDecision(cfg *config.Config, stock *config.StockConfig, pos *ledger.Position, q *quote.Quote, decision *ai.Decision, now time.Time) {
	var order *ledger.Order

	switch decision.Action {
	case ai.ActionBuy:
		qty := decision.Quantity
		if qty <= 0 {
			qty = m.defaultBuyQuantity(cfg, stock.Code, q.Price)
		}
		if qty <= 0 {
			logger.Warn("⚠️ %s(%s) 买入金额上限不足一手，跳过", stock.Name, stock.Code)
			return
		}
		order = &ledger.Order{
			Code: stock.Code, Name: stock.Name,
			Action: "buy", Quantity: qty, Price: q.Price,
			Reason: "AI决策: " + decision.Reasoning,
		}

	case ai.ActionSell:
		if pos == nil || pos.Quantity <= 0 {
			return
		}
		qty := decision.Quantity
		sellable := pos.SellableQuantity(now)
		if qty <= 0 || qty > sellable {
			qty = sellable
		}
		if qty <= 0 {
			logger.Warn("⚠️ %s(%s) 当前无可卖股数，跳过卖出", stock.Name, stock.Code)
			return
		}
		order = &ledger.Order{
			Code: stock.Code, Name: stock.Name,
			Action: "sell", Quantity: qty, Price: q.Price,
			Reason: "AI决策: " + decision.Reasoning,
		}

	default:
		return
	}

	m.submitOrder(order)
}

// defaultBuyQuantity 按单笔买入上限计算整手股数
func (m *Monitor) defaultBuyQuantity(cfg *config.Config, code string, price float64) int64 {
	if price <= 0 {
		return 0
	}
	rule := market.GetRule(market.DetectVenue(code))
	if rule == nil {
		return 0
	}
	lots := int64(cfg.Monitor.MaxBuyAmount / price / float64(rule.LotSize))
	return lots * rule.LotSize
}

// submitOrder 提交委托并发布结果事件
func (m *Monitor) submitOrder(order *ledger.Order) {
	result := m.ledger.Execute(order)

	if result.Success {
		m.totalTrades.Add(1)
		m.pm.RecordOrder(order.Code, order.Action, "success")
		m.pm.RecordTrade(order.Code, order.Action, result.Trade.Amount, result.Trade.Commission)
		m.updateAccountMetrics()

		logger.Info("✅ 成交: %s %s %d股 @%.2f 费用=%.2f 盈亏=%.2f",
			order.Name, order.Action, order.Quantity, order.Price,
			result.Trade.Commission, result.Trade.RealizedPL)

		m.bus.Publish(&event.Event{
			Type: event.EventTypeTradeExecuted,
			Data: map[string]interface{}{
				"code":        order.Code,
				"name":        order.Name,
				"action":      order.Action,
				"quantity":    order.Quantity,
				"price":       order.Price,
				"amount":      result.Trade.Amount,
				"commission":  result.Trade.Commission,
				"realized_pl": result.Trade.RealizedPL,
				"reason":      order.Reason,
			},
		})

		if !result.Persisted {
			m.bus.Publish(&event.Event{
				Type: event.EventTypePersistenceFailed,
				Data: map[string]interface{}{
					"trade_id": result.Trade.TradeID,
					"error":    result.PersistErr,
				},
			})
		}
		return
	}

	m.pm.RecordOrder(order.Code, order.Action, "rejected")
	m.pm.RecordOrderReject(order.Code, order.Action, string(result.Reject))
	m.recordError(order.Code, "trade", result.Message)

	m.bus.Publish(&event.Event{
		Type: event.EventTypeTradeFailed,
		Data: map[string]interface{}{
			"code":     order.Code,
			"name":     order.Name,
			"action":   order.Action,
			"quantity": order.Quantity,
			"price":    order.Price,
			"reject":   string(result.Reject),
			"message":  result.Message,
		},
	})
}

// updateAccountMetrics 刷新账户级指标
func (m *Monitor) updateAccountMetrics() {
	p := m.ledger.GetPortfolio()
	m.pm.SetAccountState(p.TotalValue, p.CashBalance, p.TotalProfitLoss)

	for _, pos := range m.ledger.GetPositions() {
		m.pm.SetPosition(pos.Code, pos.Quantity, pos.MarketValue())
	}
}

func (m *Monitor) recordError(code, stage, message string) {
	m.errors.add(CheckError{
		Time:    m.now(),
		Code:    code,
		Stage:   stage,
		Message: message,
	})
}
