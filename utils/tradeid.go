package utils

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var tradeSeq uint64

// GenerateTradeID 生成成交编号
// 格式: T{毫秒时间戳}_{方向缩写}_{序号}，时间戳可从编号反推成交时刻
func GenerateTradeID(action string, t time.Time) string {
	seq := atomic.AddUint64(&tradeSeq, 1)
	abbr := "B"
	if strings.EqualFold(action, "sell") {
		abbr = "S"
	}
	return fmt.Sprintf("T%d_%s_%04d", t.UnixMilli(), abbr, seq%10000)
}

// ParseTradeID 解析成交编号，返回成交时刻与方向
func ParseTradeID(id string) (ts time.Time, action string, ok bool) {
	if !strings.HasPrefix(id, "T") {
		return time.Time{}, "", false
	}
	parts := strings.Split(id[1:], "_")
	if len(parts) != 3 {
		return time.Time{}, "", false
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", false
	}
	switch parts[1] {
	case "B":
		action = "buy"
	case "S":
		action = "sell"
	default:
		return time.Time{}, "", false
	}
	return time.UnixMilli(ms).In(CSTLocation), action, true
}
