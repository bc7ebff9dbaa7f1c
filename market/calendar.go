package market

import (
	"time"

	"papertrader/utils"
)

// A股交易时段（东8区）：上午 09:30-11:30，下午 13:00-15:00

// IsTradingDay 判断是否为交易日（周一至周五）
// 法定节假日依赖外部日历数据，这里仅排除周末
func IsTradingDay(t time.Time) bool {
	wd := utils.ToCST(t).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsTradingHours 判断是否处于连续竞价时段
func IsTradingHours(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	ct := utils.ToCST(t)
	minutes := ct.Hour()*60 + ct.Minute()

	morningOpen := 9*60 + 30
	morningClose := 11*60 + 30
	afternoonOpen := 13 * 60
	afternoonClose := 15 * 60

	return (minutes >= morningOpen && minutes < morningClose) ||
		(minutes >= afternoonOpen && minutes < afternoonClose)
}

// TradingDaysBetween 计算两个时间之间经过的交易日数（不含起始日，含结束日）
func TradingDaysBetween(from, to time.Time) int {
	start := utils.DateCST(from)
	end := utils.DateCST(to)
	if !end.After(start) {
		return 0
	}

	days := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days++
		}
	}
	return days
}

// CanSellToday 判断某笔买入在当前时刻是否已过结算限制（T+N）
func CanSellToday(v Venue, buyDate, now time.Time) bool {
	rule := GetRule(v)
	if rule == nil {
		return false
	}
	return TradingDaysBetween(buyDate, now) >= rule.SettlementDays
}
