package database

import (
	"context"
	"time"

	"papertrader/ledger"
	"papertrader/market"
)

// LedgerStore 将 Database 适配为账本持久化接口
type LedgerStore struct {
	db      Database
	timeout time.Duration
}

// NewLedgerStore 创建账本存储适配器
func NewLedgerStore(db Database) *LedgerStore {
	return &LedgerStore{db: db, timeout: 5 * time.Second}
}

// SaveSnapshot 保存账户快照
func (s *LedgerStore) SaveSnapshot(portfolio *ledger.Portfolio, positions []*ledger.Position) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	record := &PortfolioRecord{
		CashBalance:         portfolio.CashBalance,
		InitialCapital:      portfolio.InitialCapital,
		PositionsValue:      portfolio.PositionsValue,
		TotalValue:          portfolio.TotalValue,
		TotalProfitLoss:     portfolio.TotalProfitLoss,
		TotalProfitLossRate: portfolio.TotalProfitLossRate,
		UpdatedAt:           portfolio.UpdatedAt,
	}

	posRecords := make([]*PositionRecord, 0, len(positions))
	for _, pos := range positions {
		pr := &PositionRecord{
			Code:       pos.Code,
			Name:       pos.Name,
			Quantity:   pos.Quantity,
			AvgCost:    pos.AvgCost,
			LastPrice:  pos.LastPrice,
			Venue:      string(pos.Venue),
			OpenDate:   pos.OpenDate,
			LastUpdate: pos.LastUpdate,
		}
		for _, lot := range pos.Lots {
			pr.Lots = append(pr.Lots, LotRecord{
				Date:     lot.Date,
				Quantity: lot.Quantity,
				Price:    lot.Price,
				Venue:    string(lot.Venue),
			})
		}
		posRecords = append(posRecords, pr)
	}

	return s.db.SaveLedgerSnapshot(ctx, record, posRecords)
}

// AppendTrade 追加成交记录
func (s *LedgerStore) AppendTrade(trade *ledger.TradeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.db.SaveTrade(ctx, &TradeRecord{
		TradeID:    trade.TradeID,
		Code:       trade.Code,
		Name:       trade.Name,
		Action:     trade.Action,
		Quantity:   trade.Quantity,
		Price:      trade.Price,
		Amount:     trade.Amount,
		Commission: trade.Commission,
		RealizedPL: trade.RealizedPL,
		Status:     trade.Status,
		Reason:     trade.Reason,
		CreatedAt:  trade.Timestamp,
	})
}

// LoadSnapshot 加载账户快照
func (s *LedgerStore) LoadSnapshot() (*ledger.Portfolio, []*ledger.Position, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	record, posRecords, err := s.db.LoadLedgerSnapshot(ctx)
	if err != nil || record == nil {
		return nil, nil, err
	}

	portfolio := &ledger.Portfolio{
		CashBalance:         record.CashBalance,
		InitialCapital:      record.InitialCapital,
		PositionsValue:      record.PositionsValue,
		TotalValue:          record.TotalValue,
		TotalProfitLoss:     record.TotalProfitLoss,
		TotalProfitLossRate: record.TotalProfitLossRate,
		UpdatedAt:           record.UpdatedAt,
	}

	positions := make([]*ledger.Position, 0, len(posRecords))
	for _, pr := range posRecords {
		pos := &ledger.Position{
			Code:       pr.Code,
			Name:       pr.Name,
			Quantity:   pr.Quantity,
			AvgCost:    pr.AvgCost,
			LastPrice:  pr.LastPrice,
			Venue:      market.Venue(pr.Venue),
			OpenDate:   pr.OpenDate,
			LastUpdate: pr.LastUpdate,
		}
		for _, lr := range pr.Lots {
			pos.Lots = append(pos.Lots, ledger.Lot{
				Date:     lr.Date,
				Quantity: lr.Quantity,
				Price:    lr.Price,
				Venue:    market.Venue(lr.Venue),
			})
		}
		positions = append(positions, pos)
	}

	return portfolio, positions, nil
}

// LoadTrades 按时间升序加载全部成交记录
func (s *LedgerStore) LoadTrades() ([]*ledger.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.db.GetTrades(ctx, &TradeFilter{Ascending: true})
	if err != nil {
		return nil, err
	}

	trades := make([]*ledger.TradeRecord, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, &ledger.TradeRecord{
			TradeID:    row.TradeID,
			Timestamp:  row.CreatedAt,
			Code:       row.Code,
			Name:       row.Name,
			Action:     row.Action,
			Quantity:   row.Quantity,
			Price:      row.Price,
			Amount:     row.Amount,
			Commission: row.Commission,
			RealizedPL: row.RealizedPL,
			Status:     row.Status,
			Reason:     row.Reason,
		})
	}
	return trades, nil
}
