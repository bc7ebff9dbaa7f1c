package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"papertrader/config"
	"papertrader/event"
)

// DingTalkNotifier 钉钉群机器人通知，支持加签
type DingTalkNotifier struct {
	name    string
	webhook string
	secret  string
	client  *http.Client
}

// NewDingTalkNotifier 创建钉钉通知器
func NewDingTalkNotifier(ch config.NotifyChannelConfig) (*DingTalkNotifier, error) {
	if ch.WebhookURL == "" {
		return nil, fmt.Errorf("钉钉 Webhook URL 未配置")
	}
	return &DingTalkNotifier{
		name:    ch.Name,
		webhook: ch.WebhookURL,
		secret:  ch.Secret,
		client:  &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (dn *DingTalkNotifier) Name() string {
	return "DingTalk/" + dn.name
}

// Send 发送通知
func (dn *DingTalkNotifier) Send(evt *event.Event) error {
	requestURL := dn.webhook
	if dn.secret != "" {
		timestamp := time.Now().UnixMilli()
		sign := dn.generateSign(timestamp)
		requestURL = fmt.Sprintf("%s&timestamp=%d&sign=%s",
			dn.webhook, timestamp, url.QueryEscape(sign))
	}

	payload := map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": formatEventText(evt),
		},
	}
	return postJSON(dn.client, requestURL, payload)
}

// generateSign 钉钉加签：HmacSHA256(timestamp\nsecret)
func (dn *DingTalkNotifier) generateSign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dn.secret)
	h := hmac.New(sha256.New, []byte(dn.secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
