package ledger

import (
	"math"
)

// PerformanceStats 基于成交记录的绩效统计
type PerformanceStats struct {
	TotalTrades     int     `json:"total_trades"`      // 总成交笔数
	BuyTrades       int     `json:"buy_trades"`        // 买入笔数
	SellTrades      int     `json:"sell_trades"`       // 卖出笔数
	WinTrades       int     `json:"win_trades"`        // 盈利平仓笔数
	LossTrades      int     `json:"loss_trades"`       // 亏损平仓笔数
	WinRate         float64 `json:"win_rate"`          // 胜率（按卖出笔数）
	TotalRealizedPL float64 `json:"total_realized_pl"` // 累计已实现盈亏
	TotalCommission float64 `json:"total_commission"`  // 累计交易费用
	MaxDrawdown     float64 `json:"max_drawdown"`      // 已实现盈亏曲线最大回撤（元）
	SharpeRatio     float64 `json:"sharpe_ratio"`      // 近似夏普比率
	AvgWin          float64 `json:"avg_win"`           // 平均盈利（元）
	AvgLoss         float64 `json:"avg_loss"`          // 平均亏损（元）
	ProfitFactor    float64 `json:"profit_factor"`     // 盈亏比
}

// 夏普近似计算参数：假设每年250个交易日各一笔，单笔投入10万元
// 这是一个粗略近似，仅用于横向比较策略表现
const (
	sharpeTradesPerYear    = 250.0
	sharpeAssumedPerTrade  = 100000.0
	sharpeRiskFreeAnnually = 0.02
)

// ComputePerformance 汇总成交记录生成绩效统计
func ComputePerformance(trades []*TradeRecord) *PerformanceStats {
	stats := &PerformanceStats{}
	if len(trades) == 0 {
		return stats
	}

	var totalWin, totalLoss float64
	var returns []float64

	// 已实现盈亏曲线，用于回撤计算
	cumulative := 0.0
	peak := 0.0

	for _, t := range trades {
		stats.TotalTrades++
		stats.TotalCommission += t.Commission

		switch t.Action {
		case "buy":
			stats.BuyTrades++
		case "sell":
			stats.SellTrades++
			stats.TotalRealizedPL += t.RealizedPL
			if t.RealizedPL > 0 {
				stats.WinTrades++
				totalWin += t.RealizedPL
			} else {
				stats.LossTrades++
				totalLoss += -t.RealizedPL
			}

			returns = append(returns, t.RealizedPL/sharpeAssumedPerTrade)

			cumulative += t.RealizedPL
			if cumulative > peak {
				peak = cumulative
			}
			if dd := peak - cumulative; dd > stats.MaxDrawdown {
				stats.MaxDrawdown = dd
			}
		}
	}

	if stats.SellTrades > 0 {
		stats.WinRate = float64(stats.WinTrades) / float64(stats.SellTrades)
	}
	if stats.WinTrades > 0 {
		stats.AvgWin = totalWin / float64(stats.WinTrades)
	}
	if stats.LossTrades > 0 {
		stats.AvgLoss = totalLoss / float64(stats.LossTrades)
	}
	if totalLoss > 0 {
		stats.ProfitFactor = totalWin / totalLoss
	}

	stats.SharpeRatio = sharpeLike(returns)
	return stats
}

// sharpeLike 按固定年化参数近似计算夏普比率
func sharpeLike(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	riskFreePerTrade := sharpeRiskFreeAnnually / sharpeTradesPerYear
	return (mean - riskFreePerTrade) / std * math.Sqrt(sharpeTradesPerYear)
}
