package market

import (
	"testing"
	"time"

	"papertrader/utils"
)

func cst(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, utils.CSTLocation)
}

func TestIsTradingHours(t *testing.T) {
	// 2026-03-02 是周一
	cases := []struct {
		t    time.Time
		want bool
		desc string
	}{
		{cst(2026, 3, 2, 9, 29), false, "开盘前"},
		{cst(2026, 3, 2, 9, 30), true, "上午开盘"},
		{cst(2026, 3, 2, 11, 29), true, "上午收盘前"},
		{cst(2026, 3, 2, 11, 30), false, "午间休市"},
		{cst(2026, 3, 2, 12, 30), false, "午间休市"},
		{cst(2026, 3, 2, 13, 0), true, "下午开盘"},
		{cst(2026, 3, 2, 14, 59), true, "下午收盘前"},
		{cst(2026, 3, 2, 15, 0), false, "已收盘"},
		{cst(2026, 3, 7, 10, 0), false, "周六"},
		{cst(2026, 3, 8, 10, 0), false, "周日"},
	}

	for _, c := range cases {
		if got := IsTradingHours(c.t); got != c.want {
			t.Errorf("%s (%v): IsTradingHours = %v, 期望 %v", c.desc, c.t, got, c.want)
		}
	}
}

func TestTradingDaysBetween(t *testing.T) {
	mon := cst(2026, 3, 2, 10, 0)
	tue := cst(2026, 3, 3, 10, 0)
	fri := cst(2026, 3, 6, 10, 0)
	nextMon := cst(2026, 3, 9, 10, 0)

	if d := TradingDaysBetween(mon, mon); d != 0 {
		t.Errorf("同一天应为0个交易日: %d", d)
	}
	if d := TradingDaysBetween(mon, tue); d != 1 {
		t.Errorf("周一到周二应为1个交易日: %d", d)
	}
	if d := TradingDaysBetween(fri, nextMon); d != 1 {
		t.Errorf("周五到下周一跨周末应为1个交易日: %d", d)
	}
	if d := TradingDaysBetween(tue, mon); d != 0 {
		t.Errorf("时间倒序应为0: %d", d)
	}
}

func TestCanSellToday(t *testing.T) {
	buyMon := cst(2026, 3, 2, 10, 0)

	// 当日买入不可卖 (T+1)
	if CanSellToday(VenueSHMain, buyMon, cst(2026, 3, 2, 14, 0)) {
		t.Error("当日买入不应可卖")
	}
	// 次一交易日可卖
	if !CanSellToday(VenueSHMain, buyMon, cst(2026, 3, 3, 9, 40)) {
		t.Error("次一交易日应可卖")
	}
	// 周五买入，周末不计入交易日，下周一可卖
	buyFri := cst(2026, 3, 6, 10, 0)
	if CanSellToday(VenueSZMain, buyFri, cst(2026, 3, 7, 10, 0)) {
		t.Error("周六不应可卖")
	}
	if !CanSellToday(VenueSZMain, buyFri, cst(2026, 3, 9, 10, 0)) {
		t.Error("下周一应可卖")
	}
}
