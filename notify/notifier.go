package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"papertrader/config"
	"papertrader/event"
	"papertrader/logger"
)

// Notifier 单个通知渠道
type Notifier interface {
	Send(evt *event.Event) error
	Name() string
}

// NotificationService 通知服务，按配置扇出到多个渠道
type NotificationService struct {
	notifiers     []Notifier
	enabled       bool
	notifyOnTrade bool
}

// NewNotificationService 根据配置创建通知服务
func NewNotificationService(cfg *config.Config) *NotificationService {
	ns := &NotificationService{
		enabled:       cfg.Notification.Enabled,
		notifyOnTrade: cfg.Notification.NotifyOnTrade,
	}

	if !cfg.Notification.Enabled {
		return ns
	}

	for _, ch := range cfg.Notification.Channels {
		if !ch.Enabled {
			continue
		}

		n, err := buildNotifier(ch)
		if err != nil {
			logger.Warn("⚠️ 初始化通知渠道 %s(%s) 失败: %v", ch.Name, ch.Type, err)
			continue
		}
		ns.notifiers = append(ns.notifiers, n)
		logger.Info("✅ 通知渠道已启用: %s (%s)", ch.Name, ch.Type)
	}
	return ns
}

func buildNotifier(ch config.NotifyChannelConfig) (Notifier, error) {
	switch ch.Type {
	case "feishu":
		return NewFeishuNotifier(ch)
	case "dingtalk":
		return NewDingTalkNotifier(ch)
	case "wechat_work":
		return NewWeChatWorkNotifier(ch)
	case "telegram":
		return NewTelegramNotifier(ch)
	case "slack":
		return NewSlackNotifier(ch)
	case "webhook":
		return NewWebhookNotifier(ch)
	default:
		return nil, fmt.Errorf("不支持的通知渠道类型: %s", ch.Type)
	}
}

// shouldNotify 默认只推 warning 及以上，成交事件受 notify_on_trade 控制
func (ns *NotificationService) shouldNotify(evt *event.Event) bool {
	if !ns.enabled || len(ns.notifiers) == 0 {
		return false
	}

	if evt.Type == event.EventTypeTradeExecuted {
		return ns.notifyOnTrade
	}

	severity := event.GetEventSeverity(evt.Type)
	return severity == event.SeverityWarning || severity == event.SeverityCritical
}

// Send 发送通知（异步并发，不阻塞调用方）
func (ns *NotificationService) Send(evt *event.Event) {
	if evt == nil || !ns.shouldNotify(evt) {
		return
	}

	go func() {
		var wg sync.WaitGroup
		for _, notifier := range ns.notifiers {
			wg.Add(1)
			go func(n Notifier) {
				defer wg.Done()
				if err := n.Send(evt); err != nil {
					logger.Warn("⚠️ [%s] 通知发送失败: %v", n.Name(), err)
				}
			}(notifier)
		}
		wg.Wait()
	}()
}

// postJSON 各渠道共用的 HTTP 提交
func postJSON(client *http.Client, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("通知接口返回错误: %d", resp.StatusCode)
	}
	return nil
}
