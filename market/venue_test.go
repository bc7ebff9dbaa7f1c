package market

import (
	"testing"
)

func TestDetectVenue(t *testing.T) {
	cases := []struct {
		code string
		want Venue
	}{
		{"600519", VenueSHMain},
		{"601318", VenueSHMain},
		{"688981", VenueSHStar},
		{"000001", VenueSZMain},
		{"002594", VenueSZMain},
		{"300750", VenueChiNext},
		{"430047", VenueBSE},
		{"830799", VenueBSE},
		{"920002", VenueBSE},
		{"123456", VenueUnknown},
		{"60051", VenueUnknown},  // 长度不足
		{"6005199", VenueUnknown}, // 长度超出
		{"60051a", VenueUnknown}, // 含非数字
		{"", VenueUnknown},
	}

	for _, c := range cases {
		if got := DetectVenue(c.code); got != c.want {
			t.Errorf("DetectVenue(%q) = %s, 期望 %s", c.code, got, c.want)
		}
	}
}

func TestValidateQuantity(t *testing.T) {
	if err := ValidateQuantity(VenueSHMain, 100); err != nil {
		t.Errorf("100股应为合法数量: %v", err)
	}
	if err := ValidateQuantity(VenueSHMain, 1500); err != nil {
		t.Errorf("1500股应为合法数量: %v", err)
	}
	if err := ValidateQuantity(VenueSHMain, 150); err == nil {
		t.Error("150股不是整手，应被拒绝")
	}
	if err := ValidateQuantity(VenueSHMain, 0); err == nil {
		t.Error("0股应被拒绝")
	}
	if err := ValidateQuantity(VenueSHMain, -100); err == nil {
		t.Error("负数量应被拒绝")
	}
	if err := ValidateQuantity(VenueUnknown, 100); err == nil {
		t.Error("未知板块应被拒绝")
	}
}

func TestCalculateCommission(t *testing.T) {
	// 10万元买入：佣金 30 元 + 沪市过户费 1 元
	fee := CalculateCommission(VenueSHMain, SideBuy, 100000)
	if fee < 30.9 || fee > 31.1 {
		t.Errorf("10万元沪市买入费用计算错误: %.2f", fee)
	}

	// 小额买入触发最低佣金
	fee = CalculateCommission(VenueSZMain, SideBuy, 1000)
	if fee < 5.0 {
		t.Errorf("最低佣金未生效: %.2f", fee)
	}

	// 卖出含印花税
	buyFee := CalculateCommission(VenueSZMain, SideBuy, 100000)
	sellFee := CalculateCommission(VenueSZMain, SideSell, 100000)
	if sellFee <= buyFee {
		t.Errorf("卖出应含印花税: 买入 %.2f, 卖出 %.2f", buyFee, sellFee)
	}
	stamp := sellFee - buyFee
	if stamp < 49.9 || stamp > 50.1 {
		t.Errorf("10万元印花税应约为50元: %.2f", stamp)
	}
}

func TestExchangePrefix(t *testing.T) {
	if p := ExchangePrefix(VenueSHStar); p != "sh" {
		t.Errorf("科创板前缀应为 sh: %s", p)
	}
	if p := ExchangePrefix(VenueChiNext); p != "sz" {
		t.Errorf("创业板前缀应为 sz: %s", p)
	}
	if p := ExchangePrefix(VenueBSE); p != "bj" {
		t.Errorf("北交所前缀应为 bj: %s", p)
	}
}
