package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/gamefill/internal/infra/fsx"
)

// Store 在 <Root>/snapshots/<source>/ 下保存来源页面的 HTML 快照。
//
// 快照只在解析失败时写入，用于离线对照页面结构调整选择器；
// 读取接口供测试与排查工具使用，运行流程本身从不读快照。
type Store struct {
	Root string
}

var ErrDisabled = errors.New("cache: 未配置目录")

func New(root string) Store {
	root = strings.TrimSpace(root)
	if root == "" {
		return Store{}
	}
	return Store{Root: filepath.Clean(root)}
}

func (s Store) Enabled() bool { return s.Root != "" }

// SnapshotPath 返回 source/key 对应快照的绝对路径。
func (s Store) SnapshotPath(source, key string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	src, err := cleanSource(source)
	if err != nil {
		return "", err
	}
	name, err := fileKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "snapshots", src, name+".html"), nil
}

// SaveHTML 覆盖写入快照并返回其路径。
func (s Store) SaveHTML(source, key string, html []byte) (string, error) {
	path, err := s.SnapshotPath(source, key)
	if err != nil {
		return "", err
	}
	if err := fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), html); err != nil {
		return "", fmt.Errorf("写入快照 %s：%w", path, err)
	}
	return path, nil
}

func (s Store) ReadHTML(source, key string) ([]byte, bool, error) {
	path, err := s.SnapshotPath(source, key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

var (
	sourceNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	unsafeKeyRE  = regexp.MustCompile(`[^a-z0-9_-]+`)
)

func cleanSource(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("source 不能为空")
	}
	if !sourceNameRE.MatchString(s) {
		return "", fmt.Errorf("非法 source：%q", s)
	}
	return s, nil
}

// fileKey 把查找键或作品名转成安全的文件名（小写，非字母数字折叠为 '_'）。
func fileKey(key string) (string, error) {
	k := unsafeKeyRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(key)), "_")
	k = strings.Trim(k, "_")
	if k == "" {
		return "", fmt.Errorf("key 不能为空：%q", key)
	}
	return k, nil
}
