package monitor

import (
	"context"
	"sync"
	"time"

	"papertrader/database"
	"papertrader/logger"
	"papertrader/metrics"
)

// 资源告警阈值
const (
	watchdogCPUWarnPercent = 80.0
	watchdogMemWarnMB      = 1024.0
	watchdogWarnCooldown   = 30 * time.Minute
)

// Watchdog 进程资源看门狗
// 周期采样 CPU/内存/协程数，落库并在超阈值时告警
type Watchdog struct {
	db             database.Database
	pm             *metrics.PrometheusMetrics
	sampleInterval time.Duration
	ctx            context.Context
	cancel         context.CancelFunc

	mu           sync.Mutex
	lastWarnTime map[string]time.Time
}

// NewWatchdog 创建看门狗
func NewWatchdog(db database.Database, intervalSeconds int) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())

	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	return &Watchdog{
		db:             db,
		pm:             metrics.GetPrometheusMetrics(),
		sampleInterval: interval,
		ctx:            ctx,
		cancel:         cancel,
		lastWarnTime:   make(map[string]time.Time),
	}
}

// Start 启动采样循环
func (w *Watchdog) Start() {
	logger.Info("✅ 资源看门狗已启动 (采样间隔: %v)", w.sampleInterval)
	go w.samplingLoop()
}

// Stop 停止看门狗
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	logger.Info("🛑 资源看门狗已停止")
}

func (w *Watchdog) samplingLoop() {
	ticker := time.NewTicker(w.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			sample, err := CollectSystemSample()
			if err != nil {
				logger.Error("❌ 采集系统指标失败: %v", err)
				continue
			}

			w.pm.SetGoroutineCount(sample.Goroutines)
			w.saveSample(sample)
			w.checkThresholds(sample)
		}
	}
}

func (w *Watchdog) saveSample(sample *SystemSample) {
	if w.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metric := &database.SystemMetric{
		CPUPercent: sample.CPUPercent,
		MemoryMB:   sample.MemoryMB,
		Goroutines: sample.Goroutines,
		CreatedAt:  sample.Timestamp,
	}
	if err := w.db.SaveSystemMetric(ctx, metric); err != nil {
		logger.Error("❌ 保存系统指标失败: %v", err)
	}
}

// checkThresholds 超过阈值时告警，带冷却避免刷屏
func (w *Watchdog) checkThresholds(sample *SystemSample) {
	if sample.CPUPercent >= watchdogCPUWarnPercent && w.shouldWarn("cpu") {
		logger.Warn("⚠️ [看门狗] CPU占用过高: %.2f%% (阈值: %.0f%%)",
			sample.CPUPercent, watchdogCPUWarnPercent)
	}
	if sample.MemoryMB >= watchdogMemWarnMB && w.shouldWarn("memory") {
		logger.Warn("⚠️ [看门狗] 内存占用过高: %.2f MB (阈值: %.0f MB)",
			sample.MemoryMB, watchdogMemWarnMB)
	}
}

func (w *Watchdog) shouldWarn(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, exists := w.lastWarnTime[key]
	if exists && time.Since(last) < watchdogWarnCooldown {
		return false
	}
	w.lastWarnTime[key] = time.Now()
	return true
}
