package quote

import (
	"context"
	"time"
)

// Quote 实时行情快照
type Quote struct {
	Code      string    `json:"code"`       // 证券代码
	Name      string    `json:"name"`       // 证券名称
	Price     float64   `json:"price"`      // 最新价
	PrevClose float64   `json:"prev_close"` // 昨收价
	Open      float64   `json:"open"`       // 今开价
	High      float64   `json:"high"`       // 最高价
	Low       float64   `json:"low"`        // 最低价
	Volume    int64     `json:"volume"`     // 成交量（手）
	Turnover  float64   `json:"turnover"`   // 成交额（万元）
	Timestamp time.Time `json:"timestamp"`  // 行情时间
}

// ChangeRate 相对昨收的涨跌幅
func (q *Quote) ChangeRate() float64 {
	if q.PrevClose <= 0 {
		return 0
	}
	return (q.Price - q.PrevClose) / q.PrevClose
}

// IsStale 判断行情是否过期
func (q *Quote) IsStale(maxAge time.Duration, now time.Time) bool {
	if q.Timestamp.IsZero() {
		return true
	}
	return now.Sub(q.Timestamp) > maxAge
}

// Provider 行情数据提供方
type Provider interface {
	// GetQuote 获取单只证券的实时行情
	GetQuote(ctx context.Context, code string) (*Quote, error)
	// GetQuotes 批量获取行情
	GetQuotes(ctx context.Context, codes []string) (map[string]*Quote, error)
}
