package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"papertrader/ai"
	"papertrader/config"
	"papertrader/event"
	"papertrader/ledger"
	"papertrader/quote"
	"papertrader/utils"
)

type fakeStore struct{}

func (s *fakeStore) SaveSnapshot(p *ledger.Portfolio, pos []*ledger.Position) error { return nil }
func (s *fakeStore) AppendTrade(t *ledger.TradeRecord) error                        { return nil }
func (s *fakeStore) LoadSnapshot() (*ledger.Portfolio, []*ledger.Position, error)   { return nil, nil, nil }
func (s *fakeStore) LoadTrades() ([]*ledger.TradeRecord, error)                     { return nil, nil }

type fakeQuotes struct {
	quotes map[string]*quote.Quote
	err    error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, code string) (*quote.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[code]
	if !ok {
		return nil, errors.New("未找到行情")
	}
	return q, nil
}

func (f *fakeQuotes) GetQuotes(ctx context.Context, codes []string) (map[string]*quote.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

type fakeAI struct {
	decision *ai.Decision
	err      error
	called   bool
}

func (f *fakeAI) Decide(ctx context.Context, sc *ai.StockContext) (*ai.Decision, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

// tradingTime 返回交易时段内的时间（2026-03-02 是周一）
func tradingTime(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, utils.CSTLocation)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfigFromBytes([]byte(`
account:
  initial_capital: 1000000
stocks:
  - code: "600519"
    name: "贵州茅台"
    stop_loss_rate: 0.05
    take_profit_rate: 0.10
monitor:
  interval_seconds: 60
  enable_auto_trade: true
`))
	if err != nil {
		t.Fatalf("构造测试配置失败: %v", err)
	}
	return cfg
}

func newTestMonitor(t *testing.T, cfg *config.Config, fq *fakeQuotes, fa ai.DecisionProvider) (*Monitor, *ledger.Ledger, *event.EventBus, *time.Time) {
	t.Helper()

	lg := ledger.NewLedger(cfg.Account.InitialCapital, &fakeStore{})
	now := tradingTime(2, 10)
	clock := &now
	lg.SetClock(func() time.Time { return *clock })

	bus := event.NewEventBus(100)
	m := NewMonitor(cfg, lg, fq, fa, bus)
	m.SetClock(func() time.Time { return *clock })
	return m, lg, bus, clock
}

func drainEvents(bus *event.EventBus) []*event.Event {
	var events []*event.Event
	for {
		select {
		case e := <-bus.Subscribe():
			events = append(events, e)
		default:
			return events
		}
	}
}

func hasEvent(events []*event.Event, typ event.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestStartRequiresStocks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stocks = nil

	m, _, _, _ := newTestMonitor(t, cfg, &fakeQuotes{}, nil)
	if err := m.Start(); err == nil {
		m.Stop()
		t.Fatal("空监控列表应该拒绝启动")
	}
	t.Log("✅ 空列表拒绝启动")
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.TradingHoursOnly = false

	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, _, bus, _ := newTestMonitor(t, cfg, fq, nil)

	if err := m.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	if err := m.Start(); err == nil {
		t.Error("重复启动应该失败")
	}
	if m.GetStatus().State != StateRunning {
		t.Errorf("状态应为 running: %s", m.GetStatus().State)
	}

	m.Stop()
	if m.GetStatus().State != StateStopped {
		t.Errorf("状态应为 stopped: %s", m.GetStatus().State)
	}

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeMonitorStarted) {
		t.Error("缺少 monitor_started 事件")
	}
	if !hasEvent(events, event.EventTypeMonitorStopped) {
		t.Error("缺少 monitor_stopped 事件")
	}
	t.Log("✅ 启停生命周期正确")
}

func TestTradingHoursGate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.TradingHoursOnly = true

	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, _, bus, clock := newTestMonitor(t, cfg, fq, nil)

	// 周一 08:00，开盘前
	*clock = tradingTime(2, 8)
	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeMonitorPaused) {
		t.Error("非交易时段应发布 monitor_paused")
	}
	if m.GetStatus().State != StatePaused {
		t.Errorf("非交易时段状态应为 paused: %s", m.GetStatus().State)
	}
	if m.totalChecks.Load() != 0 {
		t.Error("非交易时段不应执行检查")
	}

	// 再跑一个盘外周期，不应重复发布 monitor_paused
	m.runCycle(context.Background())
	if hasEvent(drainEvents(bus), event.EventTypeMonitorPaused) {
		t.Error("已暂停时不应重复发布 monitor_paused")
	}

	// 进入交易时段后自动恢复
	*clock = tradingTime(2, 10)
	fq.quotes["600519"] = &quote.Quote{
		Code: "600519", Name: "贵州茅台", Price: 1700,
		PrevClose: 1690, Timestamp: *clock,
	}
	m.runCycle(context.Background())

	events = drainEvents(bus)
	if !hasEvent(events, event.EventTypeMonitorResumed) {
		t.Error("回到交易时段应发布 monitor_resumed")
	}
	if m.GetStatus().State != StateRunning {
		t.Errorf("回到交易时段状态应为 running: %s", m.GetStatus().State)
	}
	if m.totalChecks.Load() == 0 {
		t.Error("交易时段应执行检查")
	}
	t.Log("✅ 交易时段门控正确")
}

func TestStopLossPreemptsAI(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.EnableAIDecision = true
	cfg.AI.APIKey = "sk-test"

	fa := &fakeAI{decision: &ai.Decision{Code: "600519", Action: ai.ActionBuy}}
	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, lg, bus, clock := newTestMonitor(t, cfg, fq, fa)

	// 周一买入 200 股 @1700
	result := lg.Execute(&ledger.Order{
		Code: "600519", Name: "贵州茅台",
		Action: "buy", Quantity: 200, Price: 1700,
	})
	if !result.Success {
		t.Fatalf("建仓失败: %s", result.Message)
	}

	// 周二价格下跌超过止损线（1600 相对成本 1700 跌幅 >5%）
	*clock = tradingTime(3, 10)
	fq.quotes["600519"] = &quote.Quote{
		Code: "600519", Name: "贵州茅台", Price: 1600,
		PrevClose: 1700, Timestamp: *clock,
	}
	m.runCycle(context.Background())

	if fa.called {
		t.Error("止损触发时不应调用AI决策")
	}

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeStopLoss) {
		t.Error("缺少 stop_loss_triggered 事件")
	}
	if !hasEvent(events, event.EventTypeTradeExecuted) {
		t.Error("止损应卖出可卖持仓")
	}

	pos := lg.GetPosition("600519")
	if pos != nil && pos.Quantity != 0 {
		t.Errorf("止损后应清仓: 剩余 %d 股", pos.Quantity)
	}
	t.Log("✅ 止损优先于AI并完成卖出")
}

func TestTakeProfitTrigger(t *testing.T) {
	cfg := testConfig(t)

	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, lg, bus, clock := newTestMonitor(t, cfg, fq, nil)

	result := lg.Execute(&ledger.Order{
		Code: "600519", Name: "贵州茅台",
		Action: "buy", Quantity: 100, Price: 1700,
	})
	if !result.Success {
		t.Fatalf("建仓失败: %s", result.Message)
	}

	// 周二上涨超过止盈线
	*clock = tradingTime(3, 10)
	fq.quotes["600519"] = &quote.Quote{
		Code: "600519", Name: "贵州茅台", Price: 1900,
		PrevClose: 1700, Timestamp: *clock,
	}
	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeTakeProfit) {
		t.Error("缺少 take_profit_triggered 事件")
	}
	if !hasEvent(events, event.EventTypeTradeExecuted) {
		t.Error("止盈应卖出可卖持仓")
	}
	t.Log("✅ 止盈触发并完成卖出")
}

func TestStopLossSameDayNoSellable(t *testing.T) {
	cfg := testConfig(t)

	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, lg, bus, clock := newTestMonitor(t, cfg, fq, nil)

	result := lg.Execute(&ledger.Order{
		Code: "600519", Name: "贵州茅台",
		Action: "buy", Quantity: 100, Price: 1700,
	})
	if !result.Success {
		t.Fatalf("建仓失败: %s", result.Message)
	}

	// 当天暴跌触发止损，但 T+1 限制无可卖股数
	*clock = tradingTime(2, 14)
	fq.quotes["600519"] = &quote.Quote{
		Code: "600519", Name: "贵州茅台", Price: 1500,
		PrevClose: 1700, Timestamp: *clock,
	}
	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeStopLoss) {
		t.Error("应发布 stop_loss_triggered 事件")
	}
	if hasEvent(events, event.EventTypeTradeExecuted) {
		t.Error("当日买入不可卖，不应有成交")
	}

	pos := lg.GetPosition("600519")
	if pos == nil || pos.Quantity != 100 {
		t.Error("持仓应保持不变")
	}
	t.Log("✅ 当日止损受T+1限制，仅发事件不卖出")
}

func TestAIDecisionAutoBuy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.EnableAIDecision = true
	cfg.Monitor.MaxBuyAmount = 200000
	cfg.AI.APIKey = "sk-test"

	fa := &fakeAI{decision: &ai.Decision{
		Code: "600519", Action: ai.ActionBuy, Confidence: 0.8, Reasoning: "趋势向上",
	}}
	fq := &fakeQuotes{quotes: map[string]*quote.Quote{
		"600519": {Code: "600519", Name: "贵州茅台", Price: 1700, PrevClose: 1690, Timestamp: tradingTime(2, 10)},
	}}
	m, lg, bus, _ := newTestMonitor(t, cfg, fq, fa)

	m.runCycle(context.Background())

	if !fa.called {
		t.Fatal("应调用AI决策")
	}

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeDecisionMade) {
		t.Error("缺少 decision_made 事件")
	}
	if !hasEvent(events, event.EventTypeTradeExecuted) {
		t.Error("自动交易应买入")
	}

	// 20万上限 / 1700元 = 117.6股 -> 100股（一手）
	pos := lg.GetPosition("600519")
	if pos == nil || pos.Quantity != 100 {
		t.Fatalf("买入股数应为整手 100: %+v", pos)
	}
	t.Log("✅ AI决策自动买入，按上限取整手")
}

func TestAIFailurePublishesEvent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.EnableAIDecision = true
	cfg.AI.APIKey = "sk-test"

	fa := &fakeAI{err: errors.New("请求超时")}
	fq := &fakeQuotes{quotes: map[string]*quote.Quote{
		"600519": {Code: "600519", Name: "贵州茅台", Price: 1700, PrevClose: 1690, Timestamp: tradingTime(2, 10)},
	}}
	m, _, bus, _ := newTestMonitor(t, cfg, fq, fa)

	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeAIUnavailable) {
		t.Error("AI失败应发布 ai_unavailable 事件")
	}

	status := m.GetStatus()
	if len(status.RecentErrors) == 0 {
		t.Error("错误应记入错误历史")
	}
	t.Log("✅ AI失败事件与错误记录正确")
}

func TestQuoteUnavailable(t *testing.T) {
	cfg := testConfig(t)

	fq := &fakeQuotes{err: errors.New("网络不可达")}
	m, _, bus, _ := newTestMonitor(t, cfg, fq, nil)

	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeQuoteUnavailable) {
		t.Error("行情失败应发布 quote_unavailable 事件")
	}
	t.Log("✅ 行情失败事件正确")
}

func TestStaleQuoteSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.QuoteMaxAgeSec = 300

	// 行情时间比当前早 1 小时
	fq := &fakeQuotes{quotes: map[string]*quote.Quote{
		"600519": {Code: "600519", Name: "贵州茅台", Price: 1700, Timestamp: tradingTime(2, 9)},
	}}
	m, _, bus, _ := newTestMonitor(t, cfg, fq, nil)

	m.runCycle(context.Background())

	events := drainEvents(bus)
	if !hasEvent(events, event.EventTypeQuoteUnavailable) {
		t.Error("过期行情应发布 quote_unavailable 事件")
	}
	t.Log("✅ 过期行情被跳过")
}

func TestErrorRingOverflow(t *testing.T) {
	ring := newErrorRing(3)
	for i := 0; i < 5; i++ {
		ring.add(CheckError{Code: "600519", Message: string(rune('a' + i))})
	}

	out := ring.snapshot()
	if len(out) != 3 {
		t.Fatalf("环形缓冲区应保留 3 条: %d", len(out))
	}
	if out[0].Message != "c" || out[2].Message != "e" {
		t.Errorf("应保留最新记录且有序: %+v", out)
	}
	t.Log("✅ 错误环形缓冲区覆盖正确")
}

func TestUpdateConfigHotReload(t *testing.T) {
	cfg := testConfig(t)
	fq := &fakeQuotes{quotes: map[string]*quote.Quote{}}
	m, _, _, _ := newTestMonitor(t, cfg, fq, nil)

	cfg2 := testConfig(t)
	cfg2.Stocks = append(cfg2.Stocks, config.StockConfig{Code: "000001", Name: "平安银行"})
	m.UpdateConfig(cfg2)

	status := m.GetStatus()
	if len(status.Stocks) != 2 {
		t.Errorf("热更新后应监控 2 只股票: %v", status.Stocks)
	}
	t.Log("✅ 配置热更新生效")
}
