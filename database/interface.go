package database

import (
	"context"
	"time"
)

// Database 数据库接口
type Database interface {
	// 账本快照：事务性整体替换（资金 + 持仓 + 批次）
	SaveLedgerSnapshot(ctx context.Context, portfolio *PortfolioRecord, positions []*PositionRecord) error
	LoadLedgerSnapshot(ctx context.Context) (*PortfolioRecord, []*PositionRecord, error)

	// 成交记录（只追加）
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error)

	// 事件记录
	SaveEvent(ctx context.Context, event *EventRecord) error
	GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error)
	GetEventByID(ctx context.Context, id int64) (*EventRecord, error)
	GetEventStats(ctx context.Context) (*EventStats, error)
	CleanupOldEvents(ctx context.Context, severity string, keepCount int, keepDays int) error

	// 系统指标
	SaveSystemMetric(ctx context.Context, metric *SystemMetric) error
	GetSystemMetrics(ctx context.Context, since time.Time, limit int) ([]*SystemMetric, error)

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// 数据模型

// PortfolioRecord 账户快照（单行，ID 固定为 1）
type PortfolioRecord struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	CashBalance         float64   `json:"cash_balance"`
	InitialCapital      float64   `json:"initial_capital"`
	PositionsValue      float64   `json:"positions_value"`
	TotalValue          float64   `json:"total_value"`
	TotalProfitLoss     float64   `json:"total_profit_loss"`
	TotalProfitLossRate float64   `json:"total_profit_loss_rate"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PositionRecord 持仓记录
type PositionRecord struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string      `gorm:"uniqueIndex;size:10" json:"code"`
	Name       string      `gorm:"size:50" json:"name"`
	Quantity   int64       `json:"quantity"`
	AvgCost    float64     `json:"avg_cost"`
	LastPrice  float64     `json:"last_price"`
	Venue      string      `gorm:"size:20" json:"venue"`
	OpenDate   time.Time   `json:"open_date"`
	LastUpdate time.Time   `json:"last_update"`
	Lots       []LotRecord `gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE" json:"lots"`
}

// LotRecord 持仓批次记录
type LotRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PositionID int64     `gorm:"index" json:"position_id"`
	Date       time.Time `json:"date"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Venue      string    `gorm:"size:20" json:"venue"`
}

// TradeRecord 成交记录
type TradeRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeID    string    `gorm:"uniqueIndex;size:50" json:"trade_id"`
	Code       string    `gorm:"index:idx_code_time;size:10" json:"code"`
	Name       string    `gorm:"size:50" json:"name"`
	Action     string    `gorm:"size:10" json:"action"` // buy, sell
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Commission float64   `json:"commission"`
	RealizedPL float64   `json:"realized_pl"`
	Status     string    `gorm:"size:20" json:"status"`
	Reason     string    `gorm:"size:200" json:"reason"`
	CreatedAt  time.Time `gorm:"index:idx_code_time" json:"created_at"`
}

// EventRecord 事件记录
type EventRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string    `gorm:"index;size:40" json:"event_id"`
	Type      string    `gorm:"index;size:50" json:"type"`
	Severity  string    `gorm:"index;size:20" json:"severity"`
	Source    string    `gorm:"index;size:20" json:"source"`
	Code      string    `gorm:"index;size:10" json:"code"`
	Title     string    `gorm:"size:100" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// EventStats 事件统计
type EventStats struct {
	TotalCount       int            `json:"total_count"`
	CriticalCount    int            `json:"critical_count"`
	WarningCount     int            `json:"warning_count"`
	InfoCount        int            `json:"info_count"`
	Last24HoursCount int            `json:"last_24_hours_count"`
	CountByType      map[string]int `json:"count_by_type"`
	CountBySource    map[string]int `json:"count_by_source"`
}

// SystemMetric 系统指标采样
type SystemMetric struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryMB    float64   `json:"memory_mb"`
	Goroutines  int       `json:"goroutines"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// 过滤器

// TradeFilter 成交记录过滤器
type TradeFilter struct {
	Code      string
	Action    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
	Ascending bool // 按时间升序（账本恢复时使用）
}

// EventFilter 事件记录过滤器
type EventFilter struct {
	Type      string
	Severity  string
	Source    string
	Code      string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
