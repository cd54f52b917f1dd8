package source

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/gamefill/internal/browser"
)

// Field 描述一个“标签 + 值”字段：Selector 定位标签元素，值取同一行的 td。
type Field struct {
	Label    string
	Selector string
}

// FormatError 表示页面结构与适配器预期不符（标签文本不一致或元素缺失）。
// 可由操作员修正页面后重试。
type FormatError struct {
	Label    string
	Selector string
	Got      string
}

func (e *FormatError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("未找到 %q 标签（%s）", e.Label, e.Selector)
	}
	return fmt.Sprintf("期望标签 %q，实际是 %q（%s）", e.Label, e.Got, e.Selector)
}

// ScrapeFields 按 fields 的顺序校验每个标签，全部通过后才返回 label => value。
//
// 约束：任何一个标签不匹配都返回 *FormatError 且不返回任何值，
// 避免“前面字段看似正确、后面字段失败”时产生半成品。
func ScrapeFields(doc *goquery.Document, fields []Field) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		label := doc.Find(f.Selector).First()
		if label.Length() == 0 {
			return nil, &FormatError{Label: f.Label, Selector: f.Selector}
		}
		got := browser.NormSpace(label.Text())
		if got != f.Label {
			return nil, &FormatError{Label: f.Label, Selector: f.Selector, Got: got}
		}
		values[f.Label] = cellValue(label)
	}
	return values, nil
}

// cellValue 取标签所在行的第一个 td；列表形式的多值用 ", " 连接。
func cellValue(label *goquery.Selection) string {
	td := label.Closest("tr").Find("td").First()
	items := td.Find("li")
	if items.Length() == 0 {
		return browser.NormSpace(td.Text())
	}
	parts := make([]string, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) {
		if v := browser.NormSpace(li.Text()); v != "" {
			parts = append(parts, v)
		}
	})
	return joinComma(parts)
}
