package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Precision 是 PartialDate 的精度（目标系统的单选框取值）。
type Precision string

const (
	PrecisionDay   Precision = "Day"
	PrecisionMonth Precision = "Month"
	PrecisionYear  Precision = "Year"
)

// PartialDate 表示只精确到日/月/年的日期。
//
// 不变量：value 总是 YYYY-MM-DD 形态（缺失部分补 -01），precision 与输入段数一致：
// 3 段 => Day，2 段 => Month，1 段 => Year。构造后不可变。
type PartialDate struct {
	value     string
	precision Precision
}

// ParsePartialDate 从 1~3 段以 '-' 分隔的文本构造 PartialDate。
func ParsePartialDate(text string) (PartialDate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return PartialDate{}, fmt.Errorf("日期为空")
	}
	blocks := strings.Split(text, "-")
	for _, b := range blocks {
		if strings.TrimSpace(b) == "" {
			return PartialDate{}, fmt.Errorf("日期存在空段：%q", text)
		}
	}
	switch len(blocks) {
	case 3:
		return PartialDate{value: text, precision: PrecisionDay}, nil
	case 2:
		return PartialDate{value: text + "-01", precision: PrecisionMonth}, nil
	case 1:
		return PartialDate{value: text + "-01-01", precision: PrecisionYear}, nil
	default:
		return PartialDate{}, fmt.Errorf("日期段数必须是 1~3，实际 %d：%q", len(blocks), text)
	}
}

// Value 返回补齐后的 YYYY-MM-DD。
func (d PartialDate) Value() string { return d.value }

func (d PartialDate) Precision() Precision { return d.precision }

// IsZero 表示未设置（零值不是合法日期）。
func (d PartialDate) IsZero() bool { return d.value == "" }

func (d PartialDate) String() string {
	if d.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s(%s)", d.value, d.precision)
}

var annotationRE = regexp.MustCompile(`\s*\[[^\]]*\]\s*$`)

// StripAnnotations 去掉尾部的方括号注释，例如 "1998-03 [1]" => "1998-03"。
// 可能连续出现多个注释（"[1][2]"），全部去掉。
func StripAnnotations(text string) string {
	text = strings.TrimSpace(text)
	for {
		next := annotationRE.ReplaceAllString(text, "")
		if next == text {
			return text
		}
		text = strings.TrimSpace(next)
	}
}
