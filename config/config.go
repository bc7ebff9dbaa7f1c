package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"papertrader/market"
)

// StockConfig 监控股票配置
type StockConfig struct {
	Code           string  `yaml:"code" json:"code"`                         // 证券代码（6位）
	Name           string  `yaml:"name" json:"name"`                         // 证券名称
	StopLossRate   float64 `yaml:"stop_loss_rate" json:"stop_loss_rate"`     // 止损比例（如 0.05 表示亏 5% 止损）
	TakeProfitRate float64 `yaml:"take_profit_rate" json:"take_profit_rate"` // 止盈比例（如 0.10 表示赚 10% 止盈）
	Strategy       string  `yaml:"strategy" json:"strategy"`                 // 策略提示，透传给 AI
}

// NotifyChannelConfig 通知渠道配置
type NotifyChannelConfig struct {
	Type       string `yaml:"type" json:"type"` // feishu, dingtalk, wechat_work, telegram, slack, webhook
	Name       string `yaml:"name" json:"name"`
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Secret     string `yaml:"secret" json:"secret"`       // 钉钉加签密钥
	BotToken   string `yaml:"bot_token" json:"bot_token"` // Telegram
	ChatID     string `yaml:"chat_id" json:"chat_id"`     // Telegram
}

// Config 模拟交易系统配置
type Config struct {
	// 账户配置
	Account struct {
		InitialCapital float64 `yaml:"initial_capital"` // 初始资金（元）
	} `yaml:"account"`

	// 监控股票列表
	Stocks []StockConfig `yaml:"stocks"`

	// 监控循环配置
	Monitor struct {
		IntervalSeconds  int     `yaml:"interval_seconds"`      // 检查周期（秒），限制在 [60, 3600]
		EnableAIDecision bool    `yaml:"enable_ai_decision"`    // 是否调用 AI 决策
		EnableAutoTrade  bool    `yaml:"enable_auto_trade"`     // 是否自动提交委托
		TradingHoursOnly bool    `yaml:"trading_hours_only"`    // 仅交易时段运行
		MaxBuyAmount     float64 `yaml:"max_buy_amount"`        // 单笔买入金额上限（元）
		QuoteMaxAgeSec   int     `yaml:"quote_max_age_seconds"` // 行情最大可用时长（秒）
		ErrorHistorySize int     `yaml:"error_history_size"`    // 错误环形缓冲区大小
		AITimeoutSeconds int     `yaml:"ai_timeout_seconds"`    // 单次 AI 决策超时（秒）
	} `yaml:"monitor"`

	// AI 配置
	AI struct {
		Provider string `yaml:"provider"` // openai
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
	} `yaml:"ai"`

	// 行情配置
	Quote struct {
		Provider       string `yaml:"provider"` // tencent
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"quote"`

	// 主数据库配置
	Database struct {
		Type     string `yaml:"type"` // sqlite, mysql, postgres
		DSN      string `yaml:"dsn"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"database"`

	// 日志存储配置（独立 SQLite）
	Storage struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		BufferSize    int    `yaml:"buffer_size"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"storage"`

	// 事件中心配置
	EventCenter struct {
		Enabled              bool `yaml:"enabled"`
		CleanupIntervalHours int  `yaml:"cleanup_interval_hours"`
		Retention            struct {
			CriticalDays     int `yaml:"critical_days"`
			WarningDays      int `yaml:"warning_days"`
			InfoDays         int `yaml:"info_days"`
			CriticalMaxCount int `yaml:"critical_max_count"`
			WarningMaxCount  int `yaml:"warning_max_count"`
			InfoMaxCount     int `yaml:"info_max_count"`
		} `yaml:"retention"`
	} `yaml:"event_center"`

	// 通知配置
	Notification struct {
		Enabled       bool                  `yaml:"enabled"`
		Channels      []NotifyChannelConfig `yaml:"channels"`
		NotifyOnTrade bool                  `yaml:"notify_on_trade"` // 成交也推送（默认只推 warning 以上）
	} `yaml:"notification"`

	// Web 服务配置
	Web struct {
		Enabled        bool   `yaml:"enabled"`
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		APIKey         string `yaml:"api_key"`
		LogAllRequests bool   `yaml:"log_all_requests"`
	} `yaml:"web"`

	// 系统配置
	System struct {
		LogLevel         string `yaml:"log_level"`
		Language         string `yaml:"language"` // zh-CN / en-US
		WatchdogInterval int    `yaml:"watchdog_interval_seconds"`
	} `yaml:"system"`
}

const (
	minMonitorInterval = 60
	maxMonitorInterval = 3600
)

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}
	return &cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %v", err)
	}
	return nil
}

// applyDefaults 填充默认值，监控周期收敛到合法区间
func (c *Config) applyDefaults() {
	if c.Account.InitialCapital <= 0 {
		c.Account.InitialCapital = 1000000
	}

	if c.Monitor.IntervalSeconds < minMonitorInterval {
		c.Monitor.IntervalSeconds = minMonitorInterval
	}
	if c.Monitor.IntervalSeconds > maxMonitorInterval {
		c.Monitor.IntervalSeconds = maxMonitorInterval
	}
	if c.Monitor.MaxBuyAmount <= 0 {
		c.Monitor.MaxBuyAmount = 100000
	}
	if c.Monitor.QuoteMaxAgeSec <= 0 {
		c.Monitor.QuoteMaxAgeSec = 300
	}
	if c.Monitor.ErrorHistorySize <= 0 {
		c.Monitor.ErrorHistorySize = 50
	}
	if c.Monitor.AITimeoutSeconds <= 0 {
		c.Monitor.AITimeoutSeconds = 30
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.Quote.Provider == "" {
		c.Quote.Provider = "tencent"
	}
	if c.Quote.TimeoutSeconds <= 0 {
		c.Quote.TimeoutSeconds = 10
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Type == "sqlite" {
		c.Database.DSN = "./data/papertrader.db"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "./data/logs.db"
	}
	if c.Storage.BufferSize <= 0 {
		c.Storage.BufferSize = 1000
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 30
	}

	if c.EventCenter.CleanupIntervalHours <= 0 {
		c.EventCenter.CleanupIntervalHours = 24
	}
	r := &c.EventCenter.Retention
	if r.CriticalDays <= 0 {
		r.CriticalDays = 365
	}
	if r.WarningDays <= 0 {
		r.WarningDays = 90
	}
	if r.InfoDays <= 0 {
		r.InfoDays = 30
	}
	if r.CriticalMaxCount <= 0 {
		r.CriticalMaxCount = 100000
	}
	if r.WarningMaxCount <= 0 {
		r.WarningMaxCount = 50000
	}
	if r.InfoMaxCount <= 0 {
		r.InfoMaxCount = 30000
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 28899
	}

	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.Language == "" {
		c.System.Language = "zh-CN"
	}
	if c.System.WatchdogInterval <= 0 {
		c.System.WatchdogInterval = 60
	}
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("初始资金必须为正: %.2f", c.Account.InitialCapital)
	}

	if c.Monitor.IntervalSeconds < minMonitorInterval || c.Monitor.IntervalSeconds > maxMonitorInterval {
		return fmt.Errorf("监控周期必须在 [%d, %d] 秒之间: %d",
			minMonitorInterval, maxMonitorInterval, c.Monitor.IntervalSeconds)
	}

	seen := make(map[string]bool)
	for _, stock := range c.Stocks {
		if market.DetectVenue(stock.Code) == market.VenueUnknown {
			return fmt.Errorf("无法识别的证券代码: %s", stock.Code)
		}
		if seen[stock.Code] {
			return fmt.Errorf("监控列表中证券代码重复: %s", stock.Code)
		}
		seen[stock.Code] = true

		if stock.StopLossRate < 0 || stock.StopLossRate >= 1 {
			return fmt.Errorf("%s 止损比例必须在 [0, 1) 之间: %.2f", stock.Code, stock.StopLossRate)
		}
		if stock.TakeProfitRate < 0 {
			return fmt.Errorf("%s 止盈比例不能为负: %.2f", stock.Code, stock.TakeProfitRate)
		}
	}

	if c.Monitor.EnableAIDecision && c.AI.APIKey == "" {
		return fmt.Errorf("启用AI决策时必须配置 ai.api_key")
	}

	switch c.Database.Type {
	case "sqlite", "mysql", "postgres", "postgresql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("数据库 DSN 不能为空")
	}

	for _, ch := range c.Notification.Channels {
		if !ch.Enabled {
			continue
		}
		switch ch.Type {
		case "feishu", "dingtalk", "wechat_work", "slack", "webhook":
			if ch.WebhookURL == "" {
				return fmt.Errorf("通知渠道 %s 缺少 webhook_url", ch.Name)
			}
		case "telegram":
			if ch.BotToken == "" || ch.ChatID == "" {
				return fmt.Errorf("通知渠道 %s 缺少 bot_token 或 chat_id", ch.Name)
			}
		default:
			return fmt.Errorf("不支持的通知渠道类型: %s", ch.Type)
		}
	}

	return nil
}

// CreateDefaultConfig 创建默认配置（首次运行时写入）
func CreateDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Stocks = []StockConfig{
		{Code: "600519", Name: "贵州茅台", StopLossRate: 0.05, TakeProfitRate: 0.10},
	}
	cfg.Monitor.TradingHoursOnly = true
	cfg.Storage.Enabled = true
	cfg.EventCenter.Enabled = true
	cfg.Web.Enabled = true
	cfg.applyDefaults()
	return cfg
}
