package ledger

import (
	"fmt"
	"sync"
	"time"

	"papertrader/logger"
	"papertrader/market"
	"papertrader/utils"
)

// Ledger 模拟账本：资金、持仓、成交记录的唯一事实来源
// 单写者模型，所有变更经 Execute 串行进入
type Ledger struct {
	mu             sync.RWMutex
	cash           float64
	initialCapital float64
	realizedPL     float64 // 累计已实现盈亏，卖出时累加
	positions      map[string]*Position
	trades         []*TradeRecord
	store          Store

	// 落库失败的成交记录，下次变更时重试
	pendingTrades []*TradeRecord
	snapshotDirty bool

	updatedAt time.Time
	now       func() time.Time
}

// NewLedger 创建账本
func NewLedger(initialCapital float64, store Store) *Ledger {
	return &Ledger{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]*Position),
		store:          store,
		now:            utils.NowCST,
	}
}

// SetClock 注入时钟（测试用）
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Restore 从持久化存储恢复账本状态
func (l *Ledger) Restore() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	portfolio, positions, err := l.store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("加载账户快照失败: %w", err)
	}
	if portfolio == nil {
		logger.Info("ℹ️ 未找到历史快照，使用初始资金 %.2f 元开始", l.initialCapital)
		return nil
	}

	l.cash = portfolio.CashBalance
	l.initialCapital = portfolio.InitialCapital
	l.realizedPL = portfolio.TotalProfitLoss
	l.positions = make(map[string]*Position, len(positions))
	for _, p := range positions {
		l.positions[p.Code] = p
	}

	trades, err := l.store.LoadTrades()
	if err != nil {
		return fmt.Errorf("加载成交记录失败: %w", err)
	}
	l.trades = trades

	logger.Info("✅ 账本已恢复: 资金 %.2f 元, 持仓 %d 只, 成交 %d 笔",
		l.cash, len(l.positions), len(l.trades))
	return nil
}

// Execute 执行委托：校验 → 原子变更 → 记录成交 → 重估 → 落库
// 任何校验失败都不产生部分变更
func (l *Ledger) Execute(order *Order) *ExecutionResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// 板块识别
	venue := market.DetectVenue(order.Code)
	if venue == market.VenueUnknown {
		return reject(RejectUnknownCode, fmt.Sprintf("无法识别的证券代码: %s", order.Code))
	}

	// 数量校验
	if err := market.ValidateQuantity(venue, order.Quantity); err != nil {
		return reject(RejectInvalidQuantity, err.Error())
	}
	if order.Price <= 0 {
		return reject(RejectInvalidQuantity, fmt.Sprintf("委托价格无效: %.2f", order.Price))
	}

	switch order.Action {
	case "buy":
		return l.executeBuy(order, venue, now)
	case "sell":
		return l.executeSell(order, venue, now)
	default:
		return reject(RejectInvalidQuantity, fmt.Sprintf("未知交易方向: %s", order.Action))
	}
}

// executeBuy 买入：资金检查 → 扣款 → 追加批次 → 更新摊薄成本
func (l *Ledger) executeBuy(order *Order, venue market.Venue, now time.Time) *ExecutionResult {
	amount := float64(order.Quantity) * order.Price
	commission := market.CalculateCommission(venue, market.SideBuy, amount)
	totalCost := amount + commission

	if totalCost > l.cash {
		return reject(RejectInsufficientFunds,
			fmt.Sprintf("可用资金不足: 需要 %.2f 元, 可用 %.2f 元", totalCost, l.cash))
	}

	// 原子变更
	l.cash -= totalCost

	pos, exists := l.positions[order.Code]
	if !exists {
		pos = &Position{
			Code:     order.Code,
			Name:     order.Name,
			OpenDate: now,
			Venue:    venue,
		}
		l.positions[order.Code] = pos
	}
	if order.Name != "" {
		pos.Name = order.Name
	}

	// 摊薄成本为成交量加权均价，买入费用只作现金扣减
	oldCost := pos.AvgCost * float64(pos.Quantity)
	pos.Quantity += order.Quantity
	pos.AvgCost = (oldCost + amount) / float64(pos.Quantity)
	pos.LastPrice = order.Price
	pos.LastUpdate = now
	pos.Lots = append(pos.Lots, Lot{
		Date:     now,
		Quantity: order.Quantity,
		Price:    order.Price,
		Venue:    venue,
	})

	trade := l.appendTrade(order, venue, amount, commission, 0, now)
	l.revalueLocked()

	logger.Info("✅ 买入成交: %s %s %d股 @%.2f, 费用 %.2f 元, 余额 %.2f 元",
		order.Code, pos.Name, order.Quantity, order.Price, commission, l.cash)

	return l.persistLocked(trade)
}

// executeSell 卖出：持仓与T+N检查 → FIFO消耗批次 → 计算已实现盈亏
func (l *Ledger) executeSell(order *Order, venue market.Venue, now time.Time) *ExecutionResult {
	pos, exists := l.positions[order.Code]
	if !exists || pos.Quantity < order.Quantity {
		held := int64(0)
		if exists {
			held = pos.Quantity
		}
		return reject(RejectInsufficientPosition,
			fmt.Sprintf("可卖持仓不足: 委托 %d 股, 持有 %d 股", order.Quantity, held))
	}

	sellable := pos.SellableQuantity(now)
	if sellable < order.Quantity {
		return reject(RejectSettlementRestricted,
			fmt.Sprintf("受T+1限制: 委托 %d 股, 当前可卖 %d 股", order.Quantity, sellable))
	}

	amount := float64(order.Quantity) * order.Price
	commission := market.CalculateCommission(venue, market.SideSell, amount)
	realizedPL := (order.Price-pos.AvgCost)*float64(order.Quantity) - commission

	// 原子变更：FIFO 消耗已过结算期的批次
	l.cash += amount - commission
	l.realizedPL += realizedPL
	consumeLotsFIFO(pos, order.Quantity, now)
	pos.Quantity -= order.Quantity
	pos.LastPrice = order.Price
	pos.LastUpdate = now

	if pos.Quantity == 0 {
		delete(l.positions, order.Code)
	}

	order.Name = pos.Name
	trade := l.appendTrade(order, venue, amount, commission, realizedPL, now)
	l.revalueLocked()

	logger.Info("✅ 卖出成交: %s %s %d股 @%.2f, 已实现盈亏 %.2f 元, 余额 %.2f 元",
		order.Code, pos.Name, order.Quantity, order.Price, realizedPL, l.cash)

	return l.persistLocked(trade)
}

// consumeLotsFIFO 按先进先出消耗可卖批次
func consumeLotsFIFO(pos *Position, quantity int64, now time.Time) {
	remaining := quantity
	kept := pos.Lots[:0]
	for _, lot := range pos.Lots {
		if remaining <= 0 || !market.CanSellToday(lot.Venue, lot.Date, now) {
			kept = append(kept, lot)
			continue
		}
		if lot.Quantity <= remaining {
			remaining -= lot.Quantity
			continue
		}
		lot.Quantity -= remaining
		remaining = 0
		kept = append(kept, lot)
	}
	pos.Lots = kept
}

// appendTrade 追加成交记录
func (l *Ledger) appendTrade(order *Order, venue market.Venue, amount, commission, realizedPL float64, now time.Time) *TradeRecord {
	trade := &TradeRecord{
		TradeID:    utils.GenerateTradeID(order.Action, now),
		Timestamp:  now,
		Code:       order.Code,
		Name:       order.Name,
		Action:     order.Action,
		Quantity:   order.Quantity,
		Price:      order.Price,
		Amount:     amount,
		Commission: commission,
		RealizedPL: realizedPL,
		Status:     "filled",
		Reason:     order.Reason,
	}
	l.trades = append(l.trades, trade)
	return trade
}

// persistLocked 落库：先补写之前失败的成交，再写本次成交与快照
// 失败不回滚内存状态，标记待重试
func (l *Ledger) persistLocked(trade *TradeRecord) *ExecutionResult {
	result := &ExecutionResult{Success: true, Trade: trade}

	pending := append(l.pendingTrades, trade)
	var failed []*TradeRecord
	for _, t := range pending {
		if err := l.store.AppendTrade(t); err != nil {
			failed = append(failed, t)
			result.PersistErr = err.Error()
		}
	}
	l.pendingTrades = failed

	portfolio := l.portfolioLocked()
	positions := l.positionListLocked()
	if err := l.store.SaveSnapshot(&portfolio, positions); err != nil {
		l.snapshotDirty = true
		result.PersistErr = err.Error()
	} else {
		l.snapshotDirty = false
	}

	result.Persisted = result.PersistErr == "" && len(l.pendingTrades) == 0
	if !result.Persisted {
		logger.Error("❌ 账本落库失败，内存状态保留，待下次变更重试: %s", result.PersistErr)
	}
	return result
}

// Revalue 按最新价格重估持仓与账户
// prices 中缺失的证券保留上次估值价（本轮不更新）
func (l *Ledger) Revalue(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for code, pos := range l.positions {
		if price, ok := prices[code]; ok && price > 0 {
			pos.LastPrice = price
		}
	}
	l.revalueLocked()
}

// revalueLocked 重新计算账户估值（调用方必须已持锁）
func (l *Ledger) revalueLocked() {
	l.updatedAt = l.now()
}

// portfolioLocked 计算账户概览（调用方必须已持锁）
func (l *Ledger) portfolioLocked() Portfolio {
	var positionsValue float64
	for _, pos := range l.positions {
		positionsValue += pos.MarketValue()
	}
	total := l.cash + positionsValue
	rate := 0.0
	if l.initialCapital > 0 {
		rate = (total - l.initialCapital) / l.initialCapital
	}
	return Portfolio{
		CashBalance:         l.cash,
		InitialCapital:      l.initialCapital,
		PositionsValue:      positionsValue,
		TotalValue:          total,
		TotalProfitLoss:     l.realizedPL,
		TotalProfitLossRate: rate,
		UpdatedAt:           l.updatedAt,
	}
}

// positionListLocked 导出持仓副本列表（调用方必须已持锁）
func (l *Ledger) positionListLocked() []*Position {
	list := make([]*Position, 0, len(l.positions))
	for _, pos := range l.positions {
		cp := *pos
		cp.Lots = append([]Lot(nil), pos.Lots...)
		list = append(list, &cp)
	}
	return list
}

// GetPortfolio 获取账户概览
func (l *Ledger) GetPortfolio() Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.portfolioLocked()
}

// GetPositions 获取全部持仓（副本）
func (l *Ledger) GetPositions() []*Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positionListLocked()
}

// GetPosition 获取单只持仓（副本），不存在返回 nil
func (l *Ledger) GetPosition(code string) *Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[code]
	if !ok {
		return nil
	}
	cp := *pos
	cp.Lots = append([]Lot(nil), pos.Lots...)
	return &cp
}

// GetTrades 获取最近 limit 笔成交（limit<=0 返回全部），按时间升序
func (l *Ledger) GetTrades(limit int) []*TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.trades)
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}
	out := make([]*TradeRecord, n-start)
	for i, t := range l.trades[start:] {
		cp := *t
		out[i] = &cp
	}
	return out
}

func reject(kind RejectKind, message string) *ExecutionResult {
	logger.Warn("⚠️ 委托被拒绝 [%s]: %s", kind, message)
	return &ExecutionResult{Success: false, Reject: kind, Message: message}
}
