package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&PortfolioRecord{},
		&PositionRecord{},
		&LotRecord{},
		&TradeRecord{},
		&EventRecord{},
		&SystemMetric{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveLedgerSnapshot 事务性整体替换账本快照
// 持仓与批次全量删除后重建，避免增量更新导致的不一致
func (g *GormDatabase) SaveLedgerSnapshot(ctx context.Context, portfolio *PortfolioRecord, positions []*PositionRecord) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio.ID = 1
		if err := tx.Save(portfolio).Error; err != nil {
			return err
		}

		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&LotRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PositionRecord{}).Error; err != nil {
			return err
		}

		for _, pos := range positions {
			pos.ID = 0
			for i := range pos.Lots {
				pos.Lots[i].ID = 0
			}
			if err := tx.Create(pos).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadLedgerSnapshot 加载账本快照，无记录时返回 (nil, nil, nil)
func (g *GormDatabase) LoadLedgerSnapshot(ctx context.Context) (*PortfolioRecord, []*PositionRecord, error) {
	var portfolio PortfolioRecord
	err := g.db.WithContext(ctx).First(&portfolio, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var positions []*PositionRecord
	if err := g.db.WithContext(ctx).Preload("Lots", func(db *gorm.DB) *gorm.DB {
		return db.Order("date ASC")
	}).Find(&positions).Error; err != nil {
		return nil, nil, err
	}

	return &portfolio, positions, nil
}

// SaveTrade 保存成交记录
func (g *GormDatabase) SaveTrade(ctx context.Context, trade *TradeRecord) error {
	return g.db.WithContext(ctx).Create(trade).Error
}

// GetTrades 获取成交记录
func (g *GormDatabase) GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error) {
	query := g.db.WithContext(ctx).Model(&TradeRecord{})

	if filter.Code != "" {
		query = query.Where("code = ?", filter.Code)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	if filter.Ascending {
		query = query.Order("created_at ASC")
	} else {
		query = query.Order("created_at DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var trades []*TradeRecord
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// SaveEvent 保存事件记录
func (g *GormDatabase) SaveEvent(ctx context.Context, event *EventRecord) error {
	return g.db.WithContext(ctx).Create(event).Error
}

// GetEvents 获取事件记录
func (g *GormDatabase) GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error) {
	query := g.db.WithContext(ctx).Model(&EventRecord{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Code != "" {
		query = query.Where("code = ?", filter.Code)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var events []*EventRecord
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetEventByID 按主键获取单条事件
func (g *GormDatabase) GetEventByID(ctx context.Context, id int64) (*EventRecord, error) {
	var record EventRecord
	if err := g.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetEventStats 获取事件统计
func (g *GormDatabase) GetEventStats(ctx context.Context) (*EventStats, error) {
	stats := &EventStats{
		CountByType:   make(map[string]int),
		CountBySource: make(map[string]int),
	}

	var totalCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Count(&totalCount)
	stats.TotalCount = int(totalCount)

	var criticalCount, warningCount, infoCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "critical").Count(&criticalCount)
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "warning").Count(&warningCount)
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "info").Count(&infoCount)
	stats.CriticalCount = int(criticalCount)
	stats.WarningCount = int(warningCount)
	stats.InfoCount = int(infoCount)

	last24h := time.Now().Add(-24 * time.Hour)
	var last24hCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("created_at >= ?", last24h).Count(&last24hCount)
	stats.Last24HoursCount = int(last24hCount)

	var typeStats []struct {
		Type  string
		Count int
	}
	g.db.WithContext(ctx).Model(&EventRecord{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Order("count DESC").
		Limit(20).
		Scan(&typeStats)
	for _, ts := range typeStats {
		stats.CountByType[ts.Type] = ts.Count
	}

	var sourceStats []struct {
		Source string
		Count  int
	}
	g.db.WithContext(ctx).Model(&EventRecord{}).
		Select("source, COUNT(*) as count").
		Group("source").
		Scan(&sourceStats)
	for _, ss := range sourceStats {
		stats.CountBySource[ss.Source] = ss.Count
	}

	return stats, nil
}

// CleanupOldEvents 按时间与数量清理旧事件
func (g *GormDatabase) CleanupOldEvents(ctx context.Context, severity string, keepCount int, keepDays int) error {
	cutoffDate := time.Now().AddDate(0, 0, -keepDays)
	if err := g.db.WithContext(ctx).
		Where("severity = ? AND created_at < ?", severity, cutoffDate).
		Delete(&EventRecord{}).Error; err != nil {
		return err
	}

	var count int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", severity).Count(&count)

	if int(count) > keepCount {
		var cutoffID int64
		g.db.WithContext(ctx).Model(&EventRecord{}).
			Where("severity = ?", severity).
			Order("created_at DESC").
			Limit(1).
			Offset(keepCount).
			Pluck("id", &cutoffID)

		if cutoffID > 0 {
			if err := g.db.WithContext(ctx).
				Where("severity = ? AND id < ?", severity, cutoffID).
				Delete(&EventRecord{}).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// SaveSystemMetric 保存系统指标采样
func (g *GormDatabase) SaveSystemMetric(ctx context.Context, metric *SystemMetric) error {
	return g.db.WithContext(ctx).Create(metric).Error
}

// GetSystemMetrics 获取指定时间之后的系统指标
func (g *GormDatabase) GetSystemMetrics(ctx context.Context, since time.Time, limit int) ([]*SystemMetric, error) {
	query := g.db.WithContext(ctx).Model(&SystemMetric{}).
		Where("created_at >= ?", since).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var metrics []*SystemMetric
	if err := query.Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
