package market

import (
	"fmt"
	"strings"
)

// Venue 交易板块
type Venue string

const (
	VenueSHMain  Venue = "SH_MAIN" // 上交所主板 (60 开头)
	VenueSHStar  Venue = "SH_STAR" // 上交所科创板 (688 开头)
	VenueSZMain  Venue = "SZ_MAIN" // 深交所主板 (00 开头)
	VenueChiNext Venue = "CHINEXT" // 深交所创业板 (30 开头)
	VenueBSE     Venue = "BSE"     // 北交所 (4/8/92 开头)
	VenueUnknown Venue = "UNKNOWN" // 无法识别
)

// Side 交易方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Rule 板块交易规则
type Rule struct {
	Venue          Venue   // 所属板块
	LotSize        int64   // 每手股数
	SettlementDays int     // 结算周期（T+N，N 个交易日后可卖）
	CommissionRate float64 // 券商佣金费率
	MinCommission  float64 // 最低佣金（元）
	StampTaxRate   float64 // 印花税率（仅卖出）
	TransferRate   float64 // 过户费率（仅沪市）
}

// 默认费率：佣金万分之三（最低5元），印花税千分之0.5，沪市过户费十万分之一
const (
	defaultCommissionRate = 0.0003
	defaultMinCommission  = 5.0
	defaultStampTaxRate   = 0.0005
	defaultTransferRate   = 0.00001
)

var rules = map[Venue]*Rule{
	VenueSHMain: {
		Venue: VenueSHMain, LotSize: 100, SettlementDays: 1,
		CommissionRate: defaultCommissionRate, MinCommission: defaultMinCommission,
		StampTaxRate: defaultStampTaxRate, TransferRate: defaultTransferRate,
	},
	VenueSHStar: {
		Venue: VenueSHStar, LotSize: 100, SettlementDays: 1,
		CommissionRate: defaultCommissionRate, MinCommission: defaultMinCommission,
		StampTaxRate: defaultStampTaxRate, TransferRate: defaultTransferRate,
	},
	VenueSZMain: {
		Venue: VenueSZMain, LotSize: 100, SettlementDays: 1,
		CommissionRate: defaultCommissionRate, MinCommission: defaultMinCommission,
		StampTaxRate: defaultStampTaxRate,
	},
	VenueChiNext: {
		Venue: VenueChiNext, LotSize: 100, SettlementDays: 1,
		CommissionRate: defaultCommissionRate, MinCommission: defaultMinCommission,
		StampTaxRate: defaultStampTaxRate,
	},
	VenueBSE: {
		Venue: VenueBSE, LotSize: 100, SettlementDays: 1,
		CommissionRate: defaultCommissionRate, MinCommission: defaultMinCommission,
		StampTaxRate: defaultStampTaxRate,
	},
}

// DetectVenue 根据证券代码前缀识别交易板块
func DetectVenue(code string) Venue {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return VenueUnknown
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return VenueUnknown
		}
	}

	switch {
	case strings.HasPrefix(code, "688"):
		return VenueSHStar
	case strings.HasPrefix(code, "60"):
		return VenueSHMain
	case strings.HasPrefix(code, "00"):
		return VenueSZMain
	case strings.HasPrefix(code, "30"):
		return VenueChiNext
	case strings.HasPrefix(code, "92"), strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"):
		return VenueBSE
	default:
		return VenueUnknown
	}
}

// GetRule 获取板块交易规则，未知板块返回 nil
func GetRule(v Venue) *Rule {
	return rules[v]
}

// ValidateQuantity 校验委托数量：必须为正且是每手股数的整数倍
func ValidateQuantity(v Venue, quantity int64) error {
	rule := GetRule(v)
	if rule == nil {
		return fmt.Errorf("未知板块: %s", v)
	}
	if quantity <= 0 {
		return fmt.Errorf("委托数量必须为正: %d", quantity)
	}
	if quantity%rule.LotSize != 0 {
		return fmt.Errorf("委托数量 %d 不是每手 %d 股的整数倍", quantity, rule.LotSize)
	}
	return nil
}

// CalculateCommission 计算交易费用：佣金（含最低）+ 卖出印花税 + 沪市过户费
func CalculateCommission(v Venue, side Side, amount float64) float64 {
	rule := GetRule(v)
	if rule == nil || amount <= 0 {
		return 0
	}

	commission := amount * rule.CommissionRate
	if commission < rule.MinCommission {
		commission = rule.MinCommission
	}

	if side == SideSell {
		commission += amount * rule.StampTaxRate
	}
	commission += amount * rule.TransferRate

	return commission
}

// ExchangePrefix 返回行情接口使用的市场前缀 (sh/sz/bj)
func ExchangePrefix(v Venue) string {
	switch v {
	case VenueSHMain, VenueSHStar:
		return "sh"
	case VenueSZMain, VenueChiNext:
		return "sz"
	case VenueBSE:
		return "bj"
	default:
		return ""
	}
}
