package ledger

import (
	"testing"
)

func sellTrade(pl float64) *TradeRecord {
	return &TradeRecord{Action: "sell", RealizedPL: pl, Commission: 5}
}

func TestComputePerformanceEmpty(t *testing.T) {
	stats := ComputePerformance(nil)
	if stats.TotalTrades != 0 || stats.WinRate != 0 || stats.SharpeRatio != 0 {
		t.Errorf("空成交记录应返回零值统计: %+v", stats)
	}
}

func TestComputePerformanceWinRate(t *testing.T) {
	trades := []*TradeRecord{
		{Action: "buy", Commission: 5},
		sellTrade(1000),
		sellTrade(-400),
		sellTrade(600),
		sellTrade(-200),
	}

	stats := ComputePerformance(trades)
	if stats.TotalTrades != 5 {
		t.Errorf("总笔数错误: %d", stats.TotalTrades)
	}
	if stats.SellTrades != 4 {
		t.Errorf("卖出笔数错误: %d", stats.SellTrades)
	}
	if stats.WinRate != 0.5 {
		t.Errorf("胜率应为0.5: %.2f", stats.WinRate)
	}
	if stats.TotalRealizedPL != 1000 {
		t.Errorf("累计已实现盈亏应为1000: %.2f", stats.TotalRealizedPL)
	}
	if stats.AvgWin != 800 {
		t.Errorf("平均盈利应为800: %.2f", stats.AvgWin)
	}
	if stats.AvgLoss != 300 {
		t.Errorf("平均亏损应为300: %.2f", stats.AvgLoss)
	}
	if stats.ProfitFactor < 2.6 || stats.ProfitFactor > 2.7 {
		t.Errorf("盈亏比应约为2.67: %.2f", stats.ProfitFactor)
	}
}

func TestComputePerformanceMaxDrawdown(t *testing.T) {
	// 盈亏序列: +1000 → -1500 → +500 → -800
	// 曲线: 1000, -500, 0, -800；峰值1000，最大回撤 1000-(-800)=1800
	trades := []*TradeRecord{
		sellTrade(1000),
		sellTrade(-1500),
		sellTrade(500),
		sellTrade(-800),
	}

	stats := ComputePerformance(trades)
	if stats.MaxDrawdown != 1800 {
		t.Errorf("最大回撤应为1800: %.2f", stats.MaxDrawdown)
	}
	t.Logf("✅ 最大回撤测试通过: %.2f", stats.MaxDrawdown)
}

func TestSharpeLike(t *testing.T) {
	// 收益全部相同时标准差为0，返回0
	if s := sharpeLike([]float64{0.01, 0.01, 0.01}); s != 0 {
		t.Errorf("零波动应返回0: %.4f", s)
	}

	// 稳定正收益应给出正的夏普值
	if s := sharpeLike([]float64{0.01, 0.012, 0.008, 0.011, 0.009}); s <= 0 {
		t.Errorf("稳定正收益夏普值应为正: %.4f", s)
	}

	// 样本不足返回0
	if s := sharpeLike([]float64{0.01}); s != 0 {
		t.Errorf("单样本应返回0: %.4f", s)
	}
}
