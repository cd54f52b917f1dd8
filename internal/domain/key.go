package domain

import (
	"regexp"
	"strings"
)

// KeyKind 区分查找键的种类。
type KeyKind string

const (
	KeyBarcode KeyKind = "barcode"
	KeyName    KeyKind = "name"
)

// LookupKey 是一次处理的入口：条形码或自由文本名称。
type LookupKey struct {
	Raw  string
	Kind KeyKind
}

var barcodeRE = regexp.MustCompile(`^[0-9]{6,14}$`)

// ParseLookupKey 规范化输入并判定种类：纯数字（6~14 位，允许空格分组）视为条形码，其余为名称。
func ParseLookupKey(s string) (LookupKey, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return LookupKey{}, false
	}
	compact := strings.ReplaceAll(s, " ", "")
	if barcodeRE.MatchString(compact) {
		return LookupKey{Raw: compact, Kind: KeyBarcode}, true
	}
	return LookupKey{Raw: s, Kind: KeyName}, true
}

// Barcode 返回条形码；名称键返回空串。
func (k LookupKey) Barcode() string {
	if k.Kind == KeyBarcode {
		return k.Raw
	}
	return ""
}

func (k LookupKey) String() string { return k.Raw }
