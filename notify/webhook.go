package notify

import (
	"fmt"
	"net/http"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// WebhookNotifier 通用 Webhook 通知，推送结构化 JSON
type WebhookNotifier struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(ch config.NotifyChannelConfig) (*WebhookNotifier, error) {
	if ch.WebhookURL == "" {
		return nil, fmt.Errorf("Webhook URL 未配置")
	}
	return &WebhookNotifier{
		name:   ch.Name,
		url:    ch.WebhookURL,
		client: &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (wn *WebhookNotifier) Name() string {
	return "Webhook/" + wn.name
}

// Send 发送通知
func (wn *WebhookNotifier) Send(evt *event.Event) error {
	payload := map[string]interface{}{
		"id":        evt.ID,
		"type":      string(evt.Type),
		"severity":  string(event.GetEventSeverity(evt.Type)),
		"source":    string(event.GetEventSource(evt.Type)),
		"timestamp": evt.Timestamp.Format(time.RFC3339),
		"data":      evt.Data,
	}
	return postJSON(wn.client, wn.url, payload)
}
