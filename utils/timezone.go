package utils

import (
	"time"
)

var (
	// CSTLocation A股市场所在时区（中国标准时间）
	CSTLocation *time.Location
)

func init() {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 缺少时区数据库时退回固定偏移
		loc = time.FixedZone("CST", 8*60*60)
	}
	CSTLocation = loc
}

// NowCST 获取当前中国标准时间
func NowCST() time.Time {
	return time.Now().In(CSTLocation)
}

// ToCST 将时间转换为中国标准时间
func ToCST(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(CSTLocation)
}

// DateCST 取时间在东8区的自然日（零点）
func DateCST(t time.Time) time.Time {
	ct := t.In(CSTLocation)
	return time.Date(ct.Year(), ct.Month(), ct.Day(), 0, 0, 0, 0, CSTLocation)
}

// SameTradingDate 判断两个时间是否属于同一个东8区自然日
func SameTradingDate(a, b time.Time) bool {
	return DateCST(a).Equal(DateCST(b))
}

// FormatCST 以东8区格式化时间
func FormatCST(t time.Time, layout string) string {
	return ToCST(t).Format(layout)
}
