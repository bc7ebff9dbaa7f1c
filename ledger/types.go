package ledger

import (
	"time"

	"papertrader/market"
)

// Portfolio 账户资产概览
type Portfolio struct {
	CashBalance         float64   `json:"cash_balance"`           // 可用资金
	InitialCapital      float64   `json:"initial_capital"`        // 初始资金
	PositionsValue      float64   `json:"positions_value"`        // 持仓市值
	TotalValue          float64   `json:"total_value"`            // 总资产
	TotalProfitLoss     float64   `json:"total_profit_loss"`      // 累计已实现盈亏
	TotalProfitLossRate float64   `json:"total_profit_loss_rate"` // 总盈亏率
	UpdatedAt           time.Time `json:"updated_at"`             // 最后估值时间
}

// Lot 持仓批次（一次买入形成一笔，卖出时按先进先出消耗）
type Lot struct {
	Date     time.Time    `json:"date"`     // 买入时间
	Quantity int64        `json:"quantity"` // 剩余股数
	Price    float64      `json:"price"`    // 买入价
	Venue    market.Venue `json:"venue"`    // 所属板块
}

// Position 单只证券的持仓
type Position struct {
	Code       string       `json:"code"`        // 证券代码
	Name       string       `json:"name"`        // 证券名称
	Quantity   int64        `json:"quantity"`    // 总股数
	AvgCost    float64      `json:"avg_cost"`    // 摊薄成本价（成交量加权均价）
	LastPrice  float64      `json:"last_price"`  // 最新估值价
	OpenDate   time.Time    `json:"open_date"`   // 建仓时间
	LastUpdate time.Time    `json:"last_update"` // 最后变动时间
	Venue      market.Venue `json:"venue"`       // 所属板块
	Lots       []Lot        `json:"lots"`        // 持仓批次（按买入时间排序）
}

// MarketValue 持仓市值（按最新估值价）
func (p *Position) MarketValue() float64 {
	return float64(p.Quantity) * p.LastPrice
}

// UnrealizedPL 浮动盈亏
func (p *Position) UnrealizedPL() float64 {
	return (p.LastPrice - p.AvgCost) * float64(p.Quantity)
}

// UnrealizedPLRate 浮动盈亏率
func (p *Position) UnrealizedPLRate() float64 {
	if p.AvgCost <= 0 {
		return 0
	}
	return (p.LastPrice - p.AvgCost) / p.AvgCost
}

// SellableQuantity 当前时刻可卖股数（受 T+N 结算限制）
func (p *Position) SellableQuantity(now time.Time) int64 {
	var sellable int64
	for _, lot := range p.Lots {
		if market.CanSellToday(lot.Venue, lot.Date, now) {
			sellable += lot.Quantity
		}
	}
	return sellable
}

// TradeRecord 成交记录（只追加）
type TradeRecord struct {
	TradeID    string    `json:"trade_id"`    // 成交编号
	Timestamp  time.Time `json:"timestamp"`   // 成交时间
	Code       string    `json:"code"`        // 证券代码
	Name       string    `json:"name"`        // 证券名称
	Action     string    `json:"action"`      // buy / sell
	Quantity   int64     `json:"quantity"`    // 成交股数
	Price      float64   `json:"price"`       // 成交价
	Amount     float64   `json:"amount"`      // 成交金额
	Commission float64   `json:"commission"`  // 交易费用
	RealizedPL float64   `json:"realized_pl"` // 已实现盈亏（仅卖出）
	Status     string    `json:"status"`      // 成交状态
	Reason     string    `json:"reason"`      // 触发原因（AI决策/止损/止盈/手动）
}

// Order 委托请求
type Order struct {
	Code     string  `json:"code"`     // 证券代码
	Name     string  `json:"name"`     // 证券名称
	Action   string  `json:"action"`   // buy / sell
	Quantity int64   `json:"quantity"` // 委托股数
	Price    float64 `json:"price"`    // 委托价（模拟盘按此价全额成交）
	Reason   string  `json:"reason"`   // 触发原因
}

// RejectKind 委托拒绝类别
type RejectKind string

const (
	RejectNone                  RejectKind = ""                       // 未拒绝
	RejectUnknownCode           RejectKind = "unknown_code"           // 无法识别的证券代码
	RejectInvalidQuantity       RejectKind = "invalid_quantity"       // 数量非法
	RejectSettlementRestricted  RejectKind = "settlement_restricted"  // T+N 结算限制
	RejectInsufficientFunds     RejectKind = "insufficient_funds"     // 资金不足
	RejectInsufficientPosition  RejectKind = "insufficient_position"  // 持仓不足
)

// ExecutionResult 委托执行结果
type ExecutionResult struct {
	Success    bool         `json:"success"`               // 是否成交
	Reject     RejectKind   `json:"reject,omitempty"`      // 拒绝类别
	Message    string       `json:"message,omitempty"`     // 拒绝说明
	Trade      *TradeRecord `json:"trade,omitempty"`       // 成交记录
	Persisted  bool         `json:"persisted"`             // 快照是否已落库
	PersistErr string       `json:"persist_err,omitempty"` // 落库失败原因
}
