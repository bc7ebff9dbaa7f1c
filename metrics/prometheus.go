package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// 委托指标
	orderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_order_total",
			Help: "Total number of orders submitted",
		},
		[]string{"code", "side", "status"},
	)

	orderRejectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_order_reject_total",
			Help: "Total number of rejected orders by reason",
		},
		[]string{"code", "side", "reason"},
	)

	// 成交指标
	tradeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_trade_count_total",
			Help: "Total number of trades executed",
		},
		[]string{"code", "side"},
	)

	tradeAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_trade_amount_total",
			Help: "Total trading amount in CNY",
		},
		[]string{"code", "side"},
	)

	commissionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_commission_total",
			Help: "Total commission and taxes paid in CNY",
		},
		[]string{"code"},
	)

	// 盈亏指标
	pnlTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_pnl_total",
			Help: "Total profit and loss of the account",
		},
	)

	totalValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_total_value",
			Help: "Total account value (cash + positions)",
		},
	)

	cashBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_cash_balance",
			Help: "Available cash balance",
		},
	)

	winRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_win_rate",
			Help: "Win rate of closed trades (0-1)",
		},
	)

	// 持仓指标
	positionQuantity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "papertrader_position_quantity",
			Help: "Current position quantity in shares",
		},
		[]string{"code"},
	)

	positionValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "papertrader_position_value",
			Help: "Current position market value in CNY",
		},
		[]string{"code"},
	)

	// 监控循环指标
	monitorChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_monitor_check_total",
			Help: "Total number of per-stock monitor checks",
		},
		[]string{"code", "status"},
	)

	riskTriggerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_risk_trigger_total",
			Help: "Total number of stop-loss/take-profit triggers",
		},
		[]string{"code", "kind"},
	)

	// AI 决策指标
	aiDecisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_ai_decision_total",
			Help: "Total number of AI decisions by action",
		},
		[]string{"code", "action"},
	)

	aiDecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrader_ai_decision_duration_seconds",
			Help:    "AI decision call duration in seconds",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0},
		},
	)

	// 行情指标
	quoteFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_quote_fetch_total",
			Help: "Total number of quote fetches",
		},
		[]string{"status"},
	)

	quoteFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrader_quote_fetch_duration_seconds",
			Help:    "Quote fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		},
	)

	currentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "papertrader_current_price",
			Help: "Latest quoted price",
		},
		[]string{"code"},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	gcPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrader_gc_pause_duration_seconds",
			Help:    "GC pause duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// RecordOrder 记录委托
func (pm *PrometheusMetrics) RecordOrder(code, side, status string) {
	orderTotal.WithLabelValues(code, side, status).Inc()
}

// RecordOrderReject 记录委托拒绝
func (pm *PrometheusMetrics) RecordOrderReject(code, side, reason string) {
	orderRejectTotal.WithLabelValues(code, side, reason).Inc()
}

// RecordTrade 记录成交
func (pm *PrometheusMetrics) RecordTrade(code, side string, amount, commission float64) {
	tradeCount.WithLabelValues(code, side).Inc()
	tradeAmount.WithLabelValues(code, side).Add(amount)
	commissionTotal.WithLabelValues(code).Add(commission)
}

// SetAccountState 设置账户状态指标
func (pm *PrometheusMetrics) SetAccountState(total, cash, pnl float64) {
	totalValue.Set(total)
	cashBalance.Set(cash)
	pnlTotal.Set(pnl)
}

// SetWinRate 设置胜率
func (pm *PrometheusMetrics) SetWinRate(rate float64) {
	winRate.Set(rate)
}

// SetPosition 设置持仓指标
func (pm *PrometheusMetrics) SetPosition(code string, quantity int64, value float64) {
	positionQuantity.WithLabelValues(code).Set(float64(quantity))
	positionValue.WithLabelValues(code).Set(value)
}

// ClearPosition 清除已平仓股票的指标
func (pm *PrometheusMetrics) ClearPosition(code string) {
	positionQuantity.DeleteLabelValues(code)
	positionValue.DeleteLabelValues(code)
}

// RecordMonitorCheck 记录监控检查
func (pm *PrometheusMetrics) RecordMonitorCheck(code, status string) {
	monitorChecks.WithLabelValues(code, status).Inc()
}

// RecordRiskTrigger 记录止损止盈触发
func (pm *PrometheusMetrics) RecordRiskTrigger(code, kind string) {
	riskTriggerTotal.WithLabelValues(code, kind).Inc()
}

// RecordAIDecision 记录 AI 决策
func (pm *PrometheusMetrics) RecordAIDecision(code, action string, duration time.Duration) {
	aiDecisionTotal.WithLabelValues(code, action).Inc()
	aiDecisionDuration.Observe(duration.Seconds())
}

// RecordQuoteFetch 记录行情获取
func (pm *PrometheusMetrics) RecordQuoteFetch(status string, duration time.Duration) {
	quoteFetchTotal.WithLabelValues(status).Inc()
	quoteFetchDuration.Observe(duration.Seconds())
}

// SetCurrentPrice 设置最新价
func (pm *PrometheusMetrics) SetCurrentPrice(code string, price float64) {
	currentPrice.WithLabelValues(code).Set(price)
}

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetMemoryAlloc 设置内存分配
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// RecordGCPause 记录 GC 停顿时间
func (pm *PrometheusMetrics) RecordGCPause(duration time.Duration) {
	gcPauseDuration.Observe(duration.Seconds())
}

// SetWebSocketClients 设置 WebSocket 客户端数量
func (pm *PrometheusMetrics) SetWebSocketClients(count int) {
	websocketClients.Set(float64(count))
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
