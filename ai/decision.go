package ai

import (
	"context"

	"papertrader/ledger"
	"papertrader/quote"
)

// Action 决策动作
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Decision AI交易决策
type Decision struct {
	Code       string  `json:"code"`       // 证券代码
	Action     Action  `json:"action"`     // buy/sell/hold
	Quantity   int64   `json:"quantity"`   // 建议股数（整手）
	Confidence float64 `json:"confidence"` // 置信度 0-1
	Reasoning  string  `json:"reasoning"`  // 决策理由
}

// StockContext 提供给AI的单只证券上下文
type StockContext struct {
	Quote     *quote.Quote     // 实时行情
	Position  *ledger.Position // 当前持仓，可能为 nil
	Portfolio ledger.Portfolio // 账户概览
	Sellable  int64            // 当前可卖股数
}

// DecisionProvider AI决策提供方
type DecisionProvider interface {
	// Decide 针对单只证券给出交易决策
	Decide(ctx context.Context, sc *StockContext) (*Decision, error)
}
