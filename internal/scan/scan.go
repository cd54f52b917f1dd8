package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pictures 列出 folder 下（不递归）扩展名在 exts 中的图片，返回按文件名排序的绝对路径。
//
// 规则：
// - 扩展名大小写不敏感，exts 可带或不带前导 "."
// - 隐藏文件（以 "." 开头）与子目录一律忽略
// - 结果顺序就是图片槽位的消费顺序，必须稳定
func Pictures(folder string, exts []string) ([]string, error) {
	if strings.TrimSpace(folder) == "" {
		return nil, fmt.Errorf("图片目录不能为空")
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			allowed["."+e] = true
		}
	}

	files := make([]string, 0, len(entries))
	for _, d := range entries {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		files = append(files, filepath.Join(abs, name))
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Strings(files)
	return files, nil
}
