package source

import (
	"fmt"
	"strings"
)

// Registry 是补充来源的只读注册表（按 name 索引，同时保留注册顺序）。
// 注册顺序就是执行顺序，也决定字段合并时的优先级。
type Registry struct {
	order  []string
	byName map[string]Enricher
}

func NewRegistry(enrichers ...Enricher) (Registry, error) {
	byName := make(map[string]Enricher, len(enrichers))
	order := make([]string, 0, len(enrichers))
	for _, e := range enrichers {
		if e == nil {
			return Registry{}, fmt.Errorf("enricher 不能为空")
		}
		name := normName(e.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("enricher.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 enricher：%q", name)
		}
		byName[name] = e
		order = append(order, name)
	}
	return Registry{order: order, byName: byName}, nil
}

func (r Registry) Get(name string) (Enricher, bool) {
	if r.byName == nil {
		return nil, false
	}
	e, ok := r.byName[normName(name)]
	return e, ok
}

// Names 按注册顺序返回所有来源名。
func (r Registry) Names() []string { return append([]string(nil), r.order...) }

// Validate 检查 names 中的每个名字都已注册（用于校验 --skip 参数）。
func (r Registry) Validate(names []string) error {
	for _, n := range names {
		if _, ok := r.Get(n); !ok {
			return fmt.Errorf("未知来源：%q（可选：%s）", n, strings.Join(r.order, ", "))
		}
	}
	return nil
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
