package event

import (
	"papertrader/i18n"
)

// EventSeverity 事件严重程度
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// EventSource 事件来源
type EventSource string

const (
	SourceTrade   EventSource = "trade"   // 交易引擎
	SourceMonitor EventSource = "monitor" // 监控循环
	SourceAI      EventSource = "ai"      // AI决策
	SourceQuote   EventSource = "quote"   // 行情
	SourceSystem  EventSource = "system"  // 系统
)

// GetEventSeverity 获取事件严重程度
func GetEventSeverity(t EventType) EventSeverity {
	switch t {
	case EventTypeTradeFailed, EventTypeQuoteUnavailable, EventTypeAIUnavailable, EventTypeMonitorPaused:
		return SeverityWarning
	case EventTypePersistenceFailed, EventTypeSystemError:
		return SeverityCritical
	case EventTypeStopLoss, EventTypeTakeProfit:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// GetEventSource 获取事件来源
func GetEventSource(t EventType) EventSource {
	switch t {
	case EventTypeTradeExecuted, EventTypeTradeFailed, EventTypePersistenceFailed:
		return SourceTrade
	case EventTypeDecisionMade, EventTypeAIUnavailable:
		return SourceAI
	case EventTypeQuoteUnavailable:
		return SourceQuote
	case EventTypeStopLoss, EventTypeTakeProfit,
		EventTypeMonitorStarted, EventTypeMonitorStopped,
		EventTypeMonitorPaused, EventTypeMonitorResumed:
		return SourceMonitor
	default:
		return SourceSystem
	}
}

// GetEventTitle 获取事件标题（走 i18n，未配置时返回事件类型）
func GetEventTitle(t EventType) string {
	switch t {
	case EventTypeTradeExecuted:
		return i18n.T("event.trade_executed")
	case EventTypeTradeFailed:
		return i18n.T("event.trade_failed")
	case EventTypeDecisionMade:
		return i18n.T("event.decision_made")
	case EventTypeStopLoss:
		return i18n.T("event.stop_loss_triggered")
	case EventTypeTakeProfit:
		return i18n.T("event.take_profit_triggered")
	case EventTypeMonitorStarted:
		return i18n.T("event.monitor_started")
	case EventTypeMonitorStopped:
		return i18n.T("event.monitor_stopped")
	case EventTypeMonitorPaused:
		return i18n.T("event.monitor_paused")
	case EventTypeMonitorResumed:
		return i18n.T("event.monitor_resumed")
	case EventTypeSystemError:
		return i18n.T("event.system_error")
	default:
		return string(t)
	}
}
