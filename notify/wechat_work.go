package notify

import (
	"fmt"
	"net/http"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// WeChatWorkNotifier 企业微信群机器人通知
type WeChatWorkNotifier struct {
	name    string
	webhook string
	client  *http.Client
}

// NewWeChatWorkNotifier 创建企业微信通知器
func NewWeChatWorkNotifier(ch config.NotifyChannelConfig) (*WeChatWorkNotifier, error) {
	if ch.WebhookURL == "" {
		return nil, fmt.Errorf("企业微信 Webhook URL 未配置")
	}
	return &WeChatWorkNotifier{
		name:    ch.Name,
		webhook: ch.WebhookURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (wn *WeChatWorkNotifier) Name() string {
	return "WeChatWork/" + wn.name
}

// Send 发送通知
func (wn *WeChatWorkNotifier) Send(evt *event.Event) error {
	payload := map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": formatEventText(evt),
		},
	}
	return postJSON(wn.client, wn.webhook, payload)
}
