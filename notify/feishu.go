package notify

import (
	"fmt"
	"net/http"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// FeishuNotifier 飞书群机器人通知
type FeishuNotifier struct {
	name    string
	webhook string
	client  *http.Client
}

// NewFeishuNotifier 创建飞书通知器
func NewFeishuNotifier(ch config.NotifyChannelConfig) (*FeishuNotifier, error) {
	if ch.WebhookURL == "" {
		return nil, fmt.Errorf("飞书 Webhook URL 未配置")
	}
	return &FeishuNotifier{
		name:    ch.Name,
		webhook: ch.WebhookURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (fn *FeishuNotifier) Name() string {
	return "Feishu/" + fn.name
}

// Send 发送通知
func (fn *FeishuNotifier) Send(evt *event.Event) error {
	payload := map[string]interface{}{
		"msg_type": "text",
		"content": map[string]string{
			"text": formatEventText(evt),
		},
	}
	return postJSON(fn.client, fn.webhook, payload)
}
