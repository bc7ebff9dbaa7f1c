package notify

import (
	"fmt"
	"sort"

	"papertrader/event"
)

// eventEmoji 各事件类型的标记
func eventEmoji(t event.EventType) string {
	switch t {
	case event.EventTypeTradeExecuted:
		return "✅"
	case event.EventTypeTradeFailed:
		return "❌"
	case event.EventTypeDecisionMade:
		return "🤖"
	case event.EventTypeStopLoss:
		return "🛑"
	case event.EventTypeTakeProfit:
		return "💰"
	case event.EventTypeMonitorStarted, event.EventTypeSystemStart:
		return "🚀"
	case event.EventTypeMonitorStopped, event.EventTypeSystemStop:
		return "🛑"
	case event.EventTypeMonitorPaused:
		return "⏸️"
	case event.EventTypeMonitorResumed:
		return "▶️"
	case event.EventTypeQuoteUnavailable, event.EventTypeAIUnavailable:
		return "⚠️"
	case event.EventTypePersistenceFailed, event.EventTypeSystemError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// formatEventText 所有渠道共用的纯文本格式
func formatEventText(evt *event.Event) string {
	title := event.GetEventTitle(evt.Type)
	message := fmt.Sprintf("%s %s\n时间: %s\n",
		eventEmoji(evt.Type), title, evt.Timestamp.Format("2006-01-02 15:04:05"))

	if len(evt.Data) > 0 {
		keys := make([]string, 0, len(evt.Data))
		for key := range evt.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		message += "详细信息:\n"
		for _, key := range keys {
			message += fmt.Sprintf("  %s: %v\n", key, evt.Data[key])
		}
	}
	return message
}

// formatEventMarkdown Telegram 等支持 Markdown 的渠道
func formatEventMarkdown(evt *event.Event) string {
	title := event.GetEventTitle(evt.Type)
	message := fmt.Sprintf("%s *%s*\n时间: %s\n",
		eventEmoji(evt.Type), title, evt.Timestamp.Format("2006-01-02 15:04:05"))

	if len(evt.Data) > 0 {
		keys := make([]string, 0, len(evt.Data))
		for key := range evt.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			message += fmt.Sprintf("%s: `%v`\n", key, evt.Data[key])
		}
	}
	return message
}
