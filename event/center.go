package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"papertrader/database"
	"papertrader/logger"
)

// Callback 事件回调
type Callback func(event *Event)

// NotificationService 通知服务接口
type NotificationService interface {
	Send(event *Event)
}

// EventCenterConfig 事件中心配置
type EventCenterConfig struct {
	Enabled         bool
	CleanupInterval int // 清理周期（小时）
	Retention       RetentionConfig
}

// RetentionConfig 事件保留策略
type RetentionConfig struct {
	CriticalDays     int
	WarningDays      int
	InfoDays         int
	CriticalMaxCount int
	WarningMaxCount  int
	InfoMaxCount     int
}

// EventCenter 事件中心：消费事件总线，落库、通知并分发给注册的回调
// 单个回调失败或 panic 不影响其余回调
type EventCenter struct {
	db        database.Database
	eventBus  *EventBus
	notifier  NotificationService
	config    *EventCenterConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	callbackMu sync.RWMutex
	callbacks  map[string]Callback
}

// NewEventCenter 创建事件中心
func NewEventCenter(db database.Database, eventBus *EventBus, notifier NotificationService, config *EventCenterConfig) *EventCenter {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventCenter{
		db:        db,
		eventBus:  eventBus,
		notifier:  notifier,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		callbacks: make(map[string]Callback),
	}
}

// Register 注册事件回调，name 重复时覆盖
func (ec *EventCenter) Register(name string, cb Callback) {
	ec.callbackMu.Lock()
	defer ec.callbackMu.Unlock()
	ec.callbacks[name] = cb
	logger.Debug("📌 事件回调已注册: %s", name)
}

// Unregister 注销事件回调
func (ec *EventCenter) Unregister(name string) {
	ec.callbackMu.Lock()
	defer ec.callbackMu.Unlock()
	delete(ec.callbacks, name)
	logger.Debug("📌 事件回调已注销: %s", name)
}

// Start 启动事件中心
func (ec *EventCenter) Start() error {
	if ec.config != nil && !ec.config.Enabled {
		logger.Info("⏸️ 事件中心未启用")
		return nil
	}

	logger.Info("🚀 启动事件中心...")

	ec.wg.Add(1)
	go ec.processEvents()

	ec.wg.Add(1)
	go ec.cleanupTask()

	logger.Info("✅ 事件中心已启动")
	return nil
}

// Stop 停止事件中心
func (ec *EventCenter) Stop() {
	logger.Info("🛑 停止事件中心...")
	ec.cancel()
	ec.wg.Wait()
	logger.Info("✅ 事件中心已停止")
}

// processEvents 消费事件总线
func (ec *EventCenter) processEvents() {
	defer ec.wg.Done()

	eventCh := ec.eventBus.Subscribe()

	for {
		select {
		case <-ec.ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			ec.handleEvent(event)
		}
	}
}

// handleEvent 处理单个事件：落库 → 通知 → 分发回调
func (ec *EventCenter) handleEvent(event *Event) {
	if event == nil {
		return
	}

	severity := GetEventSeverity(event.Type)

	if ec.db != nil {
		ec.persistEvent(event, severity)
	}

	// 推送规则由通知服务自行判断
	if ec.notifier != nil {
		ec.notifier.Send(event)
	}

	ec.dispatch(event)
}

// persistEvent 保存事件到数据库
func (ec *EventCenter) persistEvent(event *Event, severity EventSeverity) {
	detailsJSON, err := json.Marshal(event.Data)
	if err != nil {
		logger.Warn("⚠️ 序列化事件详情失败: %v", err)
		detailsJSON = []byte("{}")
	}

	record := &database.EventRecord{
		EventID:   event.ID,
		Type:      string(event.Type),
		Severity:  string(severity),
		Source:    string(GetEventSource(event.Type)),
		Code:      extractString(event.Data, "code"),
		Title:     GetEventTitle(event.Type),
		Message:   buildMessage(event),
		Details:   string(detailsJSON),
		CreatedAt: event.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ec.db.SaveEvent(ctx, record); err != nil {
		logger.Error("❌ 保存事件失败: %v", err)
	}
}

// dispatch 将事件分发给全部注册回调，逐个隔离失败
func (ec *EventCenter) dispatch(event *Event) {
	ec.callbackMu.RLock()
	callbacks := make(map[string]Callback, len(ec.callbacks))
	for name, cb := range ec.callbacks {
		callbacks[name] = cb
	}
	ec.callbackMu.RUnlock()

	for name, cb := range callbacks {
		ec.safeInvoke(name, cb, event)
	}
}

// safeInvoke 调用单个回调并隔离 panic
func (ec *EventCenter) safeInvoke(name string, cb Callback, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("❌ 事件回调 %s 处理 %s 时 panic: %v", name, event.Type, r)
		}
	}()
	cb(event)
}

// extractString 从事件数据中提取字符串字段
func extractString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// buildMessage 构建事件消息
func buildMessage(event *Event) string {
	switch event.Type {
	case EventTypeTradeExecuted, EventTypeTradeFailed:
		return buildTradeMessage(event)
	case EventTypeDecisionMade:
		return buildDecisionMessage(event)
	case EventTypeStopLoss, EventTypeTakeProfit:
		return buildRiskMessage(event)
	default:
		if msg := extractString(event.Data, "message"); msg != "" {
			return msg
		}
		if errMsg := extractString(event.Data, "error"); errMsg != "" {
			return errMsg
		}
		return fmt.Sprintf("事件类型: %s", event.Type)
	}
}

// buildTradeMessage 构建成交/拒单消息
func buildTradeMessage(event *Event) string {
	code := extractString(event.Data, "code")
	name := extractString(event.Data, "name")
	action := extractString(event.Data, "action")

	if event.Type == EventTypeTradeFailed {
		reason := extractString(event.Data, "reason")
		return fmt.Sprintf("%s %s %s 被拒绝: %s", code, name, action, reason)
	}
	return fmt.Sprintf("%s %s %s %v股 @ %v", code, name, action,
		event.Data["quantity"], event.Data["price"])
}

// buildDecisionMessage 构建AI决策消息
func buildDecisionMessage(event *Event) string {
	code := extractString(event.Data, "code")
	action := extractString(event.Data, "action")
	reasoning := extractString(event.Data, "reasoning")
	return fmt.Sprintf("%s AI建议 %s: %s", code, action, reasoning)
}

// buildRiskMessage 构建止损/止盈消息
func buildRiskMessage(event *Event) string {
	code := extractString(event.Data, "code")
	return fmt.Sprintf("%s 触发 %s, 现价 %v, 成本 %v",
		code, event.Type, event.Data["price"], event.Data["avg_cost"])
}

// cleanupTask 事件清理任务
func (ec *EventCenter) cleanupTask() {
	defer ec.wg.Done()

	if ec.db == nil || ec.config == nil || ec.config.CleanupInterval <= 0 {
		return
	}

	// 首次等待1小时后再开始清理
	timer := time.NewTimer(1 * time.Hour)
	defer timer.Stop()

	for {
		select {
		case <-ec.ctx.Done():
			return
		case <-timer.C:
			ec.performCleanup()
			timer.Reset(time.Duration(ec.config.CleanupInterval) * time.Hour)
		}
	}
}

// performCleanup 按严重程度清理旧事件
func (ec *EventCenter) performCleanup() {
	logger.Info("🧹 开始清理旧事件...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	r := ec.config.Retention
	rules := []struct {
		severity string
		maxCount int
		days     int
	}{
		{"critical", r.CriticalMaxCount, r.CriticalDays},
		{"warning", r.WarningMaxCount, r.WarningDays},
		{"info", r.InfoMaxCount, r.InfoDays},
	}

	for _, rule := range rules {
		if err := ec.db.CleanupOldEvents(ctx, rule.severity, rule.maxCount, rule.days); err != nil {
			logger.Error("❌ 清理 %s 事件失败: %v", rule.severity, err)
		}
	}

	logger.Info("✅ 事件清理完成")
}

// PublishEvent 发布事件（便捷方法）
func (ec *EventCenter) PublishEvent(eventType EventType, data map[string]interface{}) {
	ec.eventBus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}
