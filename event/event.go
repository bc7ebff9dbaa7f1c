package event

import (
	"time"

	"github.com/google/uuid"

	"papertrader/logger"
)

// EventType 事件类型
type EventType string

const (
	EventTypeTradeExecuted     EventType = "trade_executed"      // 成交
	EventTypeTradeFailed       EventType = "trade_failed"        // 委托被拒绝
	EventTypeDecisionMade      EventType = "decision_made"       // AI决策完成
	EventTypeStopLoss          EventType = "stop_loss_triggered" // 止损触发
	EventTypeTakeProfit        EventType = "take_profit_triggered" // 止盈触发
	EventTypeMonitorStarted    EventType = "monitor_started"     // 监控启动
	EventTypeMonitorStopped    EventType = "monitor_stopped"     // 监控停止
	EventTypeMonitorPaused     EventType = "monitor_paused"      // 非交易时段暂停
	EventTypeMonitorResumed    EventType = "monitor_resumed"     // 恢复运行
	EventTypeQuoteUnavailable  EventType = "quote_unavailable"   // 行情获取失败
	EventTypeAIUnavailable     EventType = "ai_unavailable"      // AI服务不可用
	EventTypePersistenceFailed EventType = "persistence_failed"  // 落库失败
	EventTypeSystemError       EventType = "system_error"        // 系统错误
	EventTypeSystemStart       EventType = "system_start"        // 程序启动
	EventTypeSystemStop        EventType = "system_stop"         // 程序退出
)

// Event 事件结构
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventBus 事件总线
type EventBus struct {
	eventCh    chan *Event
	bufferSize int
}

// NewEventBus 创建事件总线
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &EventBus{
		eventCh:    make(chan *Event, bufferSize),
		bufferSize: bufferSize,
	}
}

// Publish 发布事件（非阻塞）
func (eb *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case eb.eventCh <- event:
		// 成功发布
	default:
		// Channel 满了，记录警告但不阻塞
		logger.Warn("⚠️ 事件队列已满，丢弃事件: %s", event.Type)
	}
}

// Subscribe 订阅事件（返回 channel）
func (eb *EventBus) Subscribe() <-chan *Event {
	return eb.eventCh
}

// Close 关闭事件总线
func (eb *EventBus) Close() {
	close(eb.eventCh)
}
