package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrader/ai"
	"papertrader/config"
	"papertrader/database"
	"papertrader/event"
	"papertrader/i18n"
	"papertrader/ledger"
	"papertrader/logger"
	"papertrader/metrics"
	"papertrader/monitor"
	"papertrader/notify"
	"papertrader/quote"
	"papertrader/storage"
	"papertrader/web"
)

// Version 版本号，编译时通过 -ldflags 注入
var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("PaperTrader A股模拟盘\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 加载配置，不存在时生成默认配置
	var cfg *config.Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("[INFO] 配置文件不存在，创建默认配置: %s", configPath)
		cfg = config.CreateDefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			log.Printf("[WARN] 保存默认配置失败: %v，将继续运行", err)
		}
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("[FATAL] 加载配置失败: %v", err)
		}
	}

	if debugMode {
		cfg.System.LogLevel = "DEBUG"
	}
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	// 初始化 i18n
	if err := i18n.Init(cfg.System.Language); err != nil {
		logger.Warn("⚠️ 初始化 i18n 失败: %v，将使用默认语言", err)
	}
	i18n.SetSystemLanguage(cfg.System.Language)

	logger.Info("🚀 PaperTrader A股模拟盘启动...")
	logger.Info("📦 版本号: %s", Version)
	logger.Info("✅ 配置加载成功: 监控 %d 只证券, 检查周期 %d 秒",
		len(cfg.Stocks), cfg.Monitor.IntervalSeconds)

	// 日志存储（独立 SQLite，供查询与 WebSocket 实时推送）
	var logStore *storage.LogStore
	stopRetention := make(chan struct{})
	if cfg.Storage.Enabled {
		var err error
		logStore, err = storage.NewLogStore(cfg.Storage.Path, cfg.Storage.BufferSize)
		if err != nil {
			logger.Warn("⚠️ 初始化日志存储失败: %v，将继续运行但不保存日志", err)
		} else {
			logger.InitLogStorage(logStore.WriteLog)
			logStore.StartRetentionLoop(cfg.Storage.RetentionDays, stopRetention)
			logger.Info("✅ 日志存储已初始化: %s", cfg.Storage.Path)
		}
	}

	// 主数据库
	db, err := database.NewDatabase(&database.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal("❌ 初始化数据库失败: %v", err)
	}
	logger.Info("✅ 数据库已连接: %s", cfg.Database.Type)

	// 账本：加载快照恢复现金、持仓与批次
	lg := ledger.NewLedger(cfg.Account.InitialCapital, database.NewLedgerStore(db))
	if err := lg.Restore(); err != nil {
		logger.Fatal("❌ 恢复账本失败: %v", err)
	}
	portfolio := lg.GetPortfolio()
	logger.Info("💰 账户就绪: 总资产 %.2f, 可用资金 %.2f", portfolio.TotalValue, portfolio.CashBalance)

	// 行情源
	quotes := quote.NewTencentProvider(time.Duration(cfg.Quote.TimeoutSeconds) * time.Second)

	// AI 决策（可选）
	var decider ai.DecisionProvider
	if cfg.Monitor.EnableAIDecision {
		provider, err := ai.NewOpenAIProvider(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model,
			time.Duration(cfg.Monitor.AITimeoutSeconds)*time.Second)
		if err != nil {
			logger.Fatal("❌ 初始化AI决策失败: %v", err)
		}
		decider = provider
		logger.Info("🤖 AI决策已启用: %s", cfg.AI.Model)
	}

	// 事件总线 + 通知 + 事件中心
	bus := event.NewEventBus(1000)
	notifier := notify.NewNotificationService(cfg)
	eventCenter := event.NewEventCenter(db, bus, notifier, &event.EventCenterConfig{
		Enabled:         cfg.EventCenter.Enabled,
		CleanupInterval: cfg.EventCenter.CleanupIntervalHours,
		Retention: event.RetentionConfig{
			CriticalDays:     cfg.EventCenter.Retention.CriticalDays,
			WarningDays:      cfg.EventCenter.Retention.WarningDays,
			InfoDays:         cfg.EventCenter.Retention.InfoDays,
			CriticalMaxCount: cfg.EventCenter.Retention.CriticalMaxCount,
			WarningMaxCount:  cfg.EventCenter.Retention.WarningMaxCount,
			InfoMaxCount:     cfg.EventCenter.Retention.InfoMaxCount,
		},
	})
	if err := eventCenter.Start(); err != nil {
		logger.Fatal("❌ 启动事件中心失败: %v", err)
	}

	// 监控器
	mon := monitor.NewMonitor(cfg, lg, quotes, decider, bus)

	// 系统看门狗与运行时指标
	watchdog := monitor.NewWatchdog(db, cfg.System.WatchdogInterval)
	watchdog.Start()
	collector := metrics.NewSystemMetricsCollector(30 * time.Second)
	collector.Start()

	rootCtx, rootCancel := context.WithCancel(context.Background())

	// 配置热更新
	watcher, err := config.NewConfigWatcher(configPath)
	if err != nil {
		logger.Warn("⚠️ 初始化配置监听失败: %v，热更新不可用", err)
	} else {
		if err := watcher.Start(rootCtx); err != nil {
			logger.Warn("⚠️ 启动配置监听失败: %v", err)
		} else {
			go func() {
				for {
					select {
					case <-rootCtx.Done():
						return
					case newCfg := <-watcher.GetUpdateChan():
						logger.Info("🔄 配置文件变更，应用新配置")
						mon.UpdateConfig(newCfg)
					case werr := <-watcher.GetErrorChan():
						logger.Warn("⚠️ 配置热更新失败: %v", werr)
					}
				}
			}()
		}
	}

	// Web 服务
	web.Version = Version
	webServer := web.NewWebServer(&web.Deps{
		Config:     cfg,
		ConfigPath: configPath,
		Ledger:     lg,
		Monitor:    mon,
		Quotes:     quotes,
		DB:         db,
		LogStore:   logStore,
		Events:     bus,
	})
	if webServer != nil {
		if hub := webServer.Hub(); hub != nil {
			eventCenter.Register("websocket", hub.BroadcastEvent)
		}
		webServer.Start(rootCtx)
	}

	bus.Publish(&event.Event{
		Type: event.EventTypeSystemStart,
		Data: map[string]interface{}{"version": Version, "stocks": len(cfg.Stocks)},
	})

	// 配置了监控标的时自动启动
	if len(cfg.Stocks) > 0 {
		if err := mon.Start(); err != nil {
			logger.Error("❌ 启动监控失败: %v", err)
		}
	} else {
		logger.Info("ℹ️ 未配置监控标的，请通过 API 或配置文件添加")
	}

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("🛑 收到退出信号: %v，开始优雅关闭...", sig)

	bus.Publish(&event.Event{
		Type: event.EventTypeSystemStop,
		Data: map[string]interface{}{"signal": sig.String()},
	})

	// 停止顺序：监控 → Web → 采集 → 事件中心 → 存储
	mon.Stop()
	rootCancel()
	if webServer != nil {
		webServer.Stop()
	}
	collector.Stop()
	watchdog.Stop()

	// 给事件中心留出消费最后事件的时间
	time.Sleep(200 * time.Millisecond)
	eventCenter.Stop()

	close(stopRetention)
	if logStore != nil {
		logStore.Close()
	}
	if err := db.Close(); err != nil {
		logger.Warn("⚠️ 关闭数据库失败: %v", err)
	}
	logger.Close()

	fmt.Println("👋 PaperTrader 已退出")
}
