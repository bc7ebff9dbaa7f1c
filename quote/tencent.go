package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"papertrader/logger"
	"papertrader/market"
	"papertrader/utils"
)

const tencentQuoteURL = "https://qt.gtimg.cn/q=%s"

// TencentProvider 腾讯行情接口实现
// 接口返回 GBK 编码的 JS 变量赋值文本，按 ~ 分隔字段
type TencentProvider struct {
	client      *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
}

// NewTencentProvider 创建腾讯行情提供方
func NewTencentProvider(timeout time.Duration) *TencentProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TencentProvider{
		client:      &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10), // 5次/秒，突发10
		baseURL:     tencentQuoteURL,
	}
}

// GetQuote 获取单只证券的实时行情
func (p *TencentProvider) GetQuote(ctx context.Context, code string) (*Quote, error) {
	quotes, err := p.GetQuotes(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[code]
	if !ok {
		return nil, fmt.Errorf("行情接口未返回 %s 的数据", code)
	}
	return q, nil
}

// GetQuotes 批量获取行情
func (p *TencentProvider) GetQuotes(ctx context.Context, codes []string) (map[string]*Quote, error) {
	if len(codes) == 0 {
		return map[string]*Quote{}, nil
	}

	symbols := make([]string, 0, len(codes))
	for _, code := range codes {
		venue := market.DetectVenue(code)
		prefix := market.ExchangePrefix(venue)
		if prefix == "" {
			return nil, fmt.Errorf("无法识别的证券代码: %s", code)
		}
		symbols = append(symbols, prefix+code)
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("行情限流等待被取消: %w", err)
	}

	url := fmt.Sprintf(p.baseURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://gu.qq.com/")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求行情接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("行情接口返回异常状态码: %d", resp.StatusCode)
	}

	// GBK 转 UTF-8
	reader := transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取行情响应失败: %w", err)
	}

	return parseTencentResponse(string(body))
}

// parseTencentResponse 解析行情响应
// 每行形如: v_sh600519="1~贵州茅台~600519~1700.00~1690.00~...";
func parseTencentResponse(body string) (map[string]*Quote, error) {
	result := make(map[string]*Quote)

	for _, line := range strings.Split(body, ";") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "v_") {
			continue
		}
		start := strings.Index(line, "\"")
		end := strings.LastIndex(line, "\"")
		if start < 0 || end <= start {
			continue
		}

		q, err := parseTencentFields(strings.Split(line[start+1:end], "~"))
		if err != nil {
			logger.Warn("⚠️ 解析行情字段失败: %v", err)
			continue
		}
		result[q.Code] = q
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("行情响应中没有可解析的数据")
	}
	return result, nil
}

// parseTencentFields 解析单只证券的 ~ 分隔字段
func parseTencentFields(fields []string) (*Quote, error) {
	if len(fields) < 38 {
		return nil, fmt.Errorf("行情字段数量不足: %d", len(fields))
	}

	q := &Quote{
		Name:      fields[1],
		Code:      fields[2],
		Price:     parseFloat(fields[3]),
		PrevClose: parseFloat(fields[4]),
		Open:      parseFloat(fields[5]),
		Volume:    int64(parseFloat(fields[6])),
		High:      parseFloat(fields[33]),
		Low:       parseFloat(fields[34]),
		Turnover:  parseFloat(fields[37]),
	}

	if q.Code == "" || q.Price <= 0 {
		return nil, fmt.Errorf("行情数据无效: code=%s price=%.2f", q.Code, q.Price)
	}

	// 字段30: 行情时间 yyyyMMddHHmmss
	if ts, err := time.ParseInLocation("20060102150405", fields[30], utils.CSTLocation); err == nil {
		q.Timestamp = ts
	} else {
		q.Timestamp = utils.NowCST()
	}

	return q, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
