package notify

import (
	"fmt"
	"net/http"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// SlackNotifier Slack Incoming Webhook 通知
type SlackNotifier struct {
	name    string
	webhook string
	client  *http.Client
}

// NewSlackNotifier 创建 Slack 通知器
func NewSlackNotifier(ch config.NotifyChannelConfig) (*SlackNotifier, error) {
	if ch.WebhookURL == "" {
		return nil, fmt.Errorf("Slack Webhook URL 未配置")
	}
	return &SlackNotifier{
		name:    ch.Name,
		webhook: ch.WebhookURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (sn *SlackNotifier) Name() string {
	return "Slack/" + sn.name
}

// Send 发送通知
func (sn *SlackNotifier) Send(evt *event.Event) error {
	payload := map[string]interface{}{
		"text": formatEventText(evt),
	}
	return postJSON(sn.client, sn.webhook, payload)
}
