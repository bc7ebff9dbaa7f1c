package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"papertrader/logger"
)

// OpenAIProvider OpenAI 兼容接口的决策实现
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// OpenAIRequest OpenAI API请求结构
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// OpenAIMessage 消息
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponse OpenAI API响应
type OpenAIResponse struct {
	Choices []OpenAIChoice `json:"choices"`
	Error   *OpenAIError   `json:"error,omitempty"`
}

// OpenAIChoice 选择
type OpenAIChoice struct {
	Message OpenAIMessage `json:"message"`
}

// OpenAIError OpenAI错误
type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIProvider 创建OpenAI决策提供方
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API Key不能为空")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Decide 针对单只证券给出交易决策
func (p *OpenAIProvider) Decide(ctx context.Context, sc *StockContext) (*Decision, error) {
	prompt := buildDecisionPrompt(sc)
	messages := []OpenAIMessage{
		{Role: "system", Content: "你是一个专业的A股交易顾问，只输出JSON格式的交易建议。"},
		{Role: "user", Content: prompt},
	}

	response, err := p.callAPI(ctx, messages)
	if err != nil {
		return nil, err
	}

	return parseDecisionResponse(sc.Quote.Code, response), nil
}

// callAPI 调用OpenAI API
func (p *OpenAIProvider) callAPI(ctx context.Context, messages []OpenAIMessage) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)

	reqBody := OpenAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   1000,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr OpenAIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return "", fmt.Errorf("OpenAI API错误: %s", apiErr.Message)
		}
		return "", fmt.Errorf("HTTP错误: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	if openAIResp.Error != nil {
		return "", fmt.Errorf("OpenAI API错误: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API返回空响应")
	}

	return openAIResp.Choices[0].Message.Content, nil
}

// buildDecisionPrompt 构建决策Prompt
func buildDecisionPrompt(sc *StockContext) string {
	q := sc.Quote

	positionInfo := "当前未持有该证券。"
	if sc.Position != nil {
		positionInfo = fmt.Sprintf(`当前持仓:
- 持有数量: %d股（当前可卖 %d股）
- 摊薄成本: %.2f元
- 浮动盈亏: %.2f元 (%.2f%%)`,
			sc.Position.Quantity, sc.Sellable,
			sc.Position.AvgCost,
			sc.Position.UnrealizedPL(), sc.Position.UnrealizedPLRate()*100)
	}

	return fmt.Sprintf(`请根据以下数据给出A股交易建议。

证券: %s %s
最新价: %.2f元
昨收价: %.2f元
今日涨跌幅: %.2f%%
今开: %.2f元, 最高: %.2f元, 最低: %.2f元
成交量: %d手

%s

账户状态:
- 可用资金: %.2f元
- 总资产: %.2f元
- 总盈亏率: %.2f%%

注意: A股实行T+1交易制度，当日买入的股票不能当日卖出，每手100股。

请以JSON格式返回，格式如下：
{
  "action": "buy|sell|hold",
  "quantity": 整手股数,
  "confidence": 0.0-1.0,
  "reasoning": "决策理由"
}`,
		q.Code, q.Name, q.Price, q.PrevClose, q.ChangeRate()*100,
		q.Open, q.High, q.Low, q.Volume,
		positionInfo,
		sc.Portfolio.CashBalance, sc.Portfolio.TotalValue, sc.Portfolio.TotalProfitLossRate*100)
}

// parseDecisionResponse 解析决策响应，解析失败时退回 hold
func parseDecisionResponse(code, response string) *Decision {
	jsonStr := extractJSON(response)

	var raw struct {
		Action     string  `json:"action"`
		Quantity   int64   `json:"quantity"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		logger.Warn("⚠️ 无法解析AI响应为JSON，退回hold: %v", err)
		return &Decision{Code: code, Action: ActionHold, Confidence: 0, Reasoning: response}
	}

	action := Action(raw.Action)
	switch action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		logger.Warn("⚠️ AI返回未知动作 %q，退回hold", raw.Action)
		action = ActionHold
	}

	return &Decision{
		Code:       code,
		Action:     action,
		Quantity:   raw.Quantity,
		Confidence: raw.Confidence,
		Reasoning:  raw.Reasoning,
	}
}

// extractJSON 从文本中提取JSON（AI响应可能包裹在markdown代码块中）
func extractJSON(text string) string {
	start := -1
	end := -1

	for i, r := range text {
		if r == '{' && start == -1 {
			start = i
		}
		if r == '}' {
			end = i
		}
	}

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}
