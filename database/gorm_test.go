package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"papertrader/ledger"
	"papertrader/market"
	"papertrader/utils"
)

func newTestDB(t *testing.T) Database {
	t.Helper()
	db, err := NewDatabase(&Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("创建测试数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLedgerSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewLedgerStore(db)

	day1 := time.Date(2026, 3, 2, 10, 0, 0, 0, utils.CSTLocation)
	day2 := time.Date(2026, 3, 3, 10, 0, 0, 0, utils.CSTLocation)

	portfolio := &ledger.Portfolio{
		CashBalance:    800000,
		InitialCapital: 1000000,
		PositionsValue: 210000,
		TotalValue:     1010000,
		UpdatedAt:      day2,
	}
	positions := []*ledger.Position{
		{
			Code: "600519", Name: "贵州茅台", Quantity: 200, AvgCost: 1700,
			LastPrice: 1750, Venue: market.VenueSHMain, OpenDate: day1, LastUpdate: day2,
			Lots: []ledger.Lot{
				{Date: day1, Quantity: 100, Price: 1690, Venue: market.VenueSHMain},
				{Date: day2, Quantity: 100, Price: 1710, Venue: market.VenueSHMain},
			},
		},
	}

	if err := store.SaveSnapshot(portfolio, positions); err != nil {
		t.Fatalf("保存快照失败: %v", err)
	}

	loaded, loadedPos, err := store.LoadSnapshot()
	if err != nil {
		t.Fatalf("加载快照失败: %v", err)
	}
	if loaded.CashBalance != 800000 || loaded.TotalValue != 1010000 {
		t.Errorf("账户恢复错误: %+v", loaded)
	}
	if len(loadedPos) != 1 {
		t.Fatalf("持仓数量错误: %d", len(loadedPos))
	}
	pos := loadedPos[0]
	if pos.Code != "600519" || pos.Quantity != 200 || pos.Venue != market.VenueSHMain {
		t.Errorf("持仓恢复错误: %+v", pos)
	}
	if len(pos.Lots) != 2 || pos.Lots[0].Price != 1690 || pos.Lots[1].Quantity != 100 {
		t.Errorf("批次恢复错误: %+v", pos.Lots)
	}
	t.Log("✅ 快照往返一致")
}

func TestLedgerSnapshotReplace(t *testing.T) {
	db := newTestDB(t)
	store := NewLedgerStore(db)

	day := time.Date(2026, 3, 2, 10, 0, 0, 0, utils.CSTLocation)
	portfolio := &ledger.Portfolio{CashBalance: 1000000, InitialCapital: 1000000, UpdatedAt: day}

	// 第一次带持仓，第二次清仓后快照应完全替换
	withPos := []*ledger.Position{{
		Code: "000001", Name: "平安银行", Quantity: 100, AvgCost: 10, Venue: market.VenueSZMain,
		OpenDate: day, LastUpdate: day,
		Lots:     []ledger.Lot{{Date: day, Quantity: 100, Price: 10, Venue: market.VenueSZMain}},
	}}
	if err := store.SaveSnapshot(portfolio, withPos); err != nil {
		t.Fatalf("保存快照失败: %v", err)
	}
	if err := store.SaveSnapshot(portfolio, nil); err != nil {
		t.Fatalf("保存空持仓快照失败: %v", err)
	}

	_, positions, err := store.LoadSnapshot()
	if err != nil {
		t.Fatalf("加载快照失败: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("清仓后不应残留持仓: %d", len(positions))
	}
	t.Log("✅ 快照整体替换正确")
}

func TestLoadSnapshotFirstRun(t *testing.T) {
	store := NewLedgerStore(newTestDB(t))

	portfolio, positions, err := store.LoadSnapshot()
	if err != nil {
		t.Fatalf("首次加载不应报错: %v", err)
	}
	if portfolio != nil || positions != nil {
		t.Error("首次运行应返回空快照")
	}
}

func TestTradePersistence(t *testing.T) {
	db := newTestDB(t)
	store := NewLedgerStore(db)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, utils.CSTLocation)
	for i, action := range []string{"buy", "sell", "buy"} {
		err := store.AppendTrade(&ledger.TradeRecord{
			TradeID:   utils.GenerateTradeID(action, base.Add(time.Duration(i)*time.Minute)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Code:      "600519", Name: "贵州茅台", Action: action,
			Quantity: 100, Price: 1700, Amount: 170000, Commission: 51,
			Status: "filled",
		})
		if err != nil {
			t.Fatalf("保存成交失败: %v", err)
		}
	}

	// 账本恢复用升序
	trades, err := store.LoadTrades()
	if err != nil {
		t.Fatalf("加载成交失败: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("成交数量错误: %d", len(trades))
	}
	if !trades[0].Timestamp.Before(trades[2].Timestamp) {
		t.Error("恢复时成交应按时间升序")
	}

	// 按方向筛选
	ctx := context.Background()
	sells, err := db.GetTrades(ctx, &TradeFilter{Code: "600519", Action: "sell"})
	if err != nil {
		t.Fatalf("筛选成交失败: %v", err)
	}
	if len(sells) != 1 || sells[0].Action != "sell" {
		t.Errorf("方向筛选错误: %+v", sells)
	}
	t.Log("✅ 成交持久化正确")
}

func TestEventPersistenceAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := utils.NowCST()

	records := []*EventRecord{
		{EventID: "e1", Type: "stop_loss_triggered", Severity: "warning", Source: "monitor", Code: "600519", CreatedAt: now},
		{EventID: "e2", Type: "trade_executed", Severity: "info", Source: "trade", Code: "600519", CreatedAt: now},
		{EventID: "e3", Type: "system_error", Severity: "critical", Source: "system", CreatedAt: now},
	}
	for _, r := range records {
		if err := db.SaveEvent(ctx, r); err != nil {
			t.Fatalf("保存事件失败: %v", err)
		}
	}

	warnings, err := db.GetEvents(ctx, &EventFilter{Severity: "warning"})
	if err != nil {
		t.Fatalf("查询事件失败: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Type != "stop_loss_triggered" {
		t.Errorf("严重程度筛选错误: %+v", warnings)
	}

	got, err := db.GetEventByID(ctx, warnings[0].ID)
	if err != nil || got.EventID != "e1" {
		t.Errorf("按ID查询错误: %+v, %v", got, err)
	}

	stats, err := db.GetEventStats(ctx)
	if err != nil {
		t.Fatalf("查询统计失败: %v", err)
	}
	if stats.TotalCount != 3 || stats.CriticalCount != 1 || stats.WarningCount != 1 || stats.InfoCount != 1 {
		t.Errorf("统计错误: %+v", stats)
	}
	if stats.CountBySource["monitor"] != 1 {
		t.Errorf("来源统计错误: %+v", stats.CountBySource)
	}
	t.Log("✅ 事件持久化与统计正确")
}

func TestCleanupOldEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := utils.NowCST().AddDate(0, 0, -100)
	fresh := utils.NowCST()
	db.SaveEvent(ctx, &EventRecord{EventID: "old", Type: "system_error", Severity: "info", Source: "system", CreatedAt: old})
	db.SaveEvent(ctx, &EventRecord{EventID: "new", Type: "system_error", Severity: "info", Source: "system", CreatedAt: fresh})

	// 保留30天内的 info 事件
	if err := db.CleanupOldEvents(ctx, "info", 100000, 30); err != nil {
		t.Fatalf("清理事件失败: %v", err)
	}

	events, err := db.GetEvents(ctx, &EventFilter{Severity: "info"})
	if err != nil {
		t.Fatalf("查询事件失败: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "new" {
		t.Errorf("过期事件应被清理: %+v", events)
	}
	t.Log("✅ 事件清理正确")
}

func TestSystemMetricPersistence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := utils.NowCST()
	for i := 0; i < 3; i++ {
		err := db.SaveSystemMetric(ctx, &SystemMetric{
			CPUPercent: float64(10 + i), MemoryMB: 128, Goroutines: 20,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("保存指标失败: %v", err)
		}
	}

	rows, err := db.GetSystemMetrics(ctx, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("查询指标失败: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("指标数量错误: %d", len(rows))
	}
	t.Log("✅ 系统指标持久化正确")
}

func TestUnsupportedDatabaseType(t *testing.T) {
	if _, err := NewDatabase(&Config{Type: "mongodb", DSN: "x"}); err == nil {
		t.Error("不支持的数据库类型应报错")
	}
}
