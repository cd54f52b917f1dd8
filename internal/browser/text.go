package browser

import "strings"

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormSpace 把连续空白折叠为单个空格并去掉首尾空白。
func NormSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
