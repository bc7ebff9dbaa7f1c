package ledger

// Store 账本持久化接口
// 快照保存必须是事务性的整体替换，成交记录只追加
type Store interface {
	// SaveSnapshot 保存账户快照（资金 + 全部持仓及批次）
	SaveSnapshot(portfolio *Portfolio, positions []*Position) error
	// AppendTrade 追加一条成交记录
	AppendTrade(trade *TradeRecord) error
	// LoadSnapshot 加载账户快照，首次运行返回 (nil, nil, nil)
	LoadSnapshot() (*Portfolio, []*Position, error)
	// LoadTrades 加载全部成交记录（按时间升序）
	LoadTrades() ([]*TradeRecord, error)
}
