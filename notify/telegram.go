package notify

import (
	"fmt"
	"net/http"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// TelegramNotifier Telegram Bot 通知
type TelegramNotifier struct {
	name     string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier 创建 Telegram 通知器
func NewTelegramNotifier(ch config.NotifyChannelConfig) (*TelegramNotifier, error) {
	if ch.BotToken == "" || ch.ChatID == "" {
		return nil, fmt.Errorf("Telegram BotToken 或 ChatID 未配置")
	}
	return &TelegramNotifier{
		name:     ch.Name,
		botToken: ch.BotToken,
		chatID:   ch.ChatID,
		client:   &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (tn *TelegramNotifier) Name() string {
	return "Telegram/" + tn.name
}

// Send 发送通知
func (tn *TelegramNotifier) Send(evt *event.Event) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", tn.botToken)
	payload := map[string]interface{}{
		"chat_id":    tn.chatID,
		"text":       formatEventMarkdown(evt),
		"parse_mode": "Markdown",
	}
	return postJSON(tn.client, url, payload)
}
