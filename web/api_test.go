package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"papertrader/config"
	"papertrader/database"
	"papertrader/event"
	"papertrader/i18n"
	"papertrader/ledger"
	"papertrader/monitor"
	"papertrader/quote"
	"papertrader/utils"
)

type fakeQuotes struct {
	quotes map[string]*quote.Quote
	err    error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, code string) (*quote.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[code]
	if !ok {
		return nil, errors.New("未找到行情")
	}
	return q, nil
}

func (f *fakeQuotes) GetQuotes(ctx context.Context, codes []string) (map[string]*quote.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

const testAPIKey = "test-api-key"

func testWebConfig(t *testing.T, configPath string) *config.Config {
	t.Helper()
	yaml := `
account:
  initial_capital: 1000000
stocks:
  - code: "600519"
    name: "贵州茅台"
    stop_loss_rate: 0.05
    take_profit_rate: 0.10
monitor:
  interval_seconds: 60
web:
  enabled: true
  host: "127.0.0.1"
  port: 28899
  api_key: "` + testAPIKey + `"
`
	cfg, err := config.LoadConfigFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("解析测试配置失败: %v", err)
	}
	if configPath != "" {
		if err := config.SaveConfig(cfg, configPath); err != nil {
			t.Fatalf("写入测试配置失败: %v", err)
		}
	}
	return cfg
}

// newTestServer 构建带真实 sqlite 数据库的测试服务器
func newTestServer(t *testing.T) (*WebServer, http.Handler) {
	t.Helper()
	i18n.Init("zh-CN")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	cfg := testWebConfig(t, configPath)

	db, err := database.NewDatabase(&database.Config{
		Type: "sqlite",
		DSN:  filepath.Join(dir, "test.db"),
	})
	if err != nil {
		t.Fatalf("创建测试数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	lg := ledger.NewLedger(cfg.Account.InitialCapital, database.NewLedgerStore(db))
	quotes := &fakeQuotes{quotes: map[string]*quote.Quote{
		"600519": {Code: "600519", Name: "贵州茅台", Price: 1700, PrevClose: 1680, Timestamp: utils.NowCST()},
	}}
	bus := event.NewEventBus(100)
	mon := monitor.NewMonitor(cfg, lg, quotes, nil, bus)

	ws := NewWebServer(&Deps{
		Config:     cfg,
		ConfigPath: configPath,
		Ledger:     lg,
		Monitor:    mon,
		Quotes:     quotes,
		DB:         db,
		Events:     bus,
	})
	if ws == nil {
		t.Fatal("Web 服务应已启用")
	}
	return ws, ws.server.Handler
}

func doRequest(handler http.Handler, method, path string, body []byte, withKey bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if withKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	_, handler := newTestServer(t)

	if w := doRequest(handler, "GET", "/api/account", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("无密钥访问应返回401: %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/account", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("错误密钥应返回401: %d", w.Code)
	}

	if w := doRequest(handler, "GET", "/api/account", nil, true); w.Code != http.StatusOK {
		t.Errorf("正确密钥应返回200: %d", w.Code)
	}

	// 查询参数方式同样有效
	req = httptest.NewRequest("GET", "/api/account?api_key="+testAPIKey, nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("查询参数密钥应返回200: %d", w.Code)
	}
	t.Log("✅ API密钥认证正确")
}

func TestIndexAndHealth(t *testing.T) {
	_, handler := newTestServer(t)

	w := doRequest(handler, "GET", "/", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("首页应返回200: %d", w.Code)
	}
	var info map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &info)
	if info["name"] != "papertrader" {
		t.Errorf("服务名错误: %v", info["name"])
	}

	if w := doRequest(handler, "GET", "/api/health", nil, false); w.Code != http.StatusOK {
		t.Errorf("健康检查应返回200: %d", w.Code)
	}
	t.Log("✅ 基础端点正常")
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	w := doRequest(handler, "GET", "/metrics", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("指标端点应返回200: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "papertrader_") {
		t.Error("指标输出应包含 papertrader_ 前缀")
	}
	t.Log("✅ Prometheus 指标端点正常")
}

func TestPlaceOrderLifecycle(t *testing.T) {
	_, handler := newTestServer(t)

	// 买入100股
	body, _ := json.Marshal(map[string]interface{}{
		"code": "600519", "action": "buy", "quantity": 100, "price": 1700.0,
	})
	w := doRequest(handler, "POST", "/api/order", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("下单应成功: %d %s", w.Code, w.Body.String())
	}

	var result ledger.ExecutionResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if !result.Success || result.Trade == nil {
		t.Fatalf("成交结果异常: %+v", result)
	}
	if result.Trade.Commission <= 0 {
		t.Error("买入应产生交易费用")
	}

	// 持仓与可卖数量
	w = doRequest(handler, "GET", "/api/positions", nil, true)
	var posResp struct {
		Positions []struct {
			Code     string `json:"code"`
			Quantity int64  `json:"quantity"`
			Sellable int64  `json:"sellable"`
		} `json:"positions"`
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &posResp)
	if posResp.Count != 1 || posResp.Positions[0].Quantity != 100 {
		t.Fatalf("持仓错误: %+v", posResp)
	}
	if posResp.Positions[0].Sellable != 0 {
		t.Errorf("当日买入不应可卖: %d", posResp.Positions[0].Sellable)
	}

	// 账户现金减少
	w = doRequest(handler, "GET", "/api/account", nil, true)
	var portfolio ledger.Portfolio
	json.Unmarshal(w.Body.Bytes(), &portfolio)
	if portfolio.CashBalance >= 1000000 {
		t.Errorf("买入后现金应减少: %.2f", portfolio.CashBalance)
	}
	t.Log("✅ 手动下单流程正确")
}

func TestPlaceOrderRejected(t *testing.T) {
	_, handler := newTestServer(t)

	// 非整手数量
	body, _ := json.Marshal(map[string]interface{}{
		"code": "600519", "action": "buy", "quantity": 150, "price": 1700.0,
	})
	w := doRequest(handler, "POST", "/api/order", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("业务拒绝仍应返回200: %d", w.Code)
	}
	var result ledger.ExecutionResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Success {
		t.Fatal("非整手委托不应成交")
	}
	if result.Reject != ledger.RejectInvalidQuantity {
		t.Errorf("拒绝类别错误: %s", result.Reject)
	}

	// 非法方向
	body, _ = json.Marshal(map[string]interface{}{
		"code": "600519", "action": "short", "quantity": 100,
	})
	if w := doRequest(handler, "POST", "/api/order", body, true); w.Code != http.StatusBadRequest {
		t.Errorf("非法方向应返回400: %d", w.Code)
	}
	t.Log("✅ 委托拒绝处理正确")
}

func TestMonitorEndpoints(t *testing.T) {
	_, handler := newTestServer(t)

	w := doRequest(handler, "GET", "/api/monitor/status", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("状态查询应返回200: %d", w.Code)
	}
	var status map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &status)
	if status["state"] != "idle" {
		t.Errorf("初始状态应为idle: %v", status["state"])
	}

	// 未运行时暂停应冲突
	if w := doRequest(handler, "POST", "/api/monitor/pause", nil, true); w.Code != http.StatusConflict {
		t.Errorf("未运行时暂停应返回409: %d", w.Code)
	}
	t.Log("✅ 监控控制端点正确")
}

func TestGetQuoteEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	w := doRequest(handler, "GET", "/api/quote/600519", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("行情查询应返回200: %d", w.Code)
	}
	var q quote.Quote
	json.Unmarshal(w.Body.Bytes(), &q)
	if q.Price != 1700 {
		t.Errorf("行情价格错误: %.2f", q.Price)
	}

	if w := doRequest(handler, "GET", "/api/quote/000000", nil, true); w.Code != http.StatusBadGateway {
		t.Errorf("未知代码应返回502: %d", w.Code)
	}

	if w := doRequest(handler, "GET", "/api/quotes", nil, true); w.Code != http.StatusBadRequest {
		t.Errorf("缺少codes参数应返回400: %d", w.Code)
	}
	t.Log("✅ 行情端点正确")
}

func TestGetConfigMasksSecrets(t *testing.T) {
	ws, handler := newTestServer(t)
	ws.deps.Config.AI.APIKey = "sk-1234567890"

	w := doRequest(handler, "GET", "/api/config", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("配置查询应返回200: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sk-1234567890") {
		t.Error("响应不应包含完整密钥")
	}
	if !strings.Contains(w.Body.String(), "sk-1****") {
		t.Error("密钥应脱敏为前缀形式")
	}
	t.Log("✅ 配置脱敏正确")
}

func TestUpdateConfig(t *testing.T) {
	ws, handler := newTestServer(t)

	newYAML := testConfigYAMLWithInterval(120)
	w := doRequest(handler, "PUT", "/api/config", []byte(newYAML), true)
	if w.Code != http.StatusOK {
		t.Fatalf("配置更新应返回200: %d %s", w.Code, w.Body.String())
	}

	// 文件已写回
	data, err := os.ReadFile(ws.deps.ConfigPath)
	if err != nil {
		t.Fatalf("读取配置文件失败: %v", err)
	}
	if !strings.Contains(string(data), "interval_seconds: 120") {
		t.Error("配置文件应包含新的检查周期")
	}

	// 非法配置被拒绝
	if w := doRequest(handler, "PUT", "/api/config", []byte("stocks: [{code: '999999'}]"), true); w.Code != http.StatusBadRequest {
		t.Errorf("非法配置应返回400: %d", w.Code)
	}
	t.Log("✅ 配置更新正确")
}

func testConfigYAMLWithInterval(interval int) string {
	return `
account:
  initial_capital: 1000000
stocks:
  - code: "600519"
    name: "贵州茅台"
    stop_loss_rate: 0.05
    take_profit_rate: 0.10
monitor:
  interval_seconds: ` + strconv.Itoa(interval) + `
web:
  enabled: true
  api_key: "` + testAPIKey + `"
`
}

func TestEventsEndpoint(t *testing.T) {
	ws, handler := newTestServer(t)

	// 直接落一条事件
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := ws.deps.DB.SaveEvent(ctx, &database.EventRecord{
		EventID: "evt-1", Type: "stop_loss_triggered", Severity: "warning",
		Source: "monitor", Code: "600519", Title: "止损触发",
		CreatedAt: utils.NowCST(),
	})
	if err != nil {
		t.Fatalf("保存事件失败: %v", err)
	}

	w := doRequest(handler, "GET", "/api/events?severity=warning", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("事件查询应返回200: %d", w.Code)
	}
	var resp struct {
		Events []database.EventRecord `json:"events"`
		Count  int                    `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Events[0].Code != "600519" {
		t.Fatalf("事件查询结果错误: %+v", resp)
	}

	// 按ID查询
	w = doRequest(handler, "GET", "/api/events/"+strconv.FormatInt(resp.Events[0].ID, 10), nil, true)
	if w.Code != http.StatusOK {
		t.Errorf("事件详情应返回200: %d", w.Code)
	}

	// 统计
	w = doRequest(handler, "GET", "/api/events/stats", nil, true)
	var stats database.EventStats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.WarningCount != 1 {
		t.Errorf("警告事件统计错误: %d", stats.WarningCount)
	}
	t.Log("✅ 事件端点正确")
}

func TestPerformanceEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"code": "600519", "action": "buy", "quantity": 100, "price": 1700.0,
	})
	doRequest(handler, "POST", "/api/order", body, true)

	w := doRequest(handler, "GET", "/api/performance", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("绩效查询应返回200: %d", w.Code)
	}
	var stats ledger.PerformanceStats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalTrades != 1 || stats.BuyTrades != 1 {
		t.Errorf("绩效统计错误: %+v", stats)
	}
	t.Log("✅ 绩效端点正确")
}
