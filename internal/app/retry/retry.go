// Package retry 实现补充来源的人工重试/跳过循环。
//
// 这是系统唯一的失败恢复机制：没有自动退避，也没有备用来源。
package retry

import (
	"context"
	"fmt"
)

// Decision 是操作员对一次失败的处理决定。
type Decision int

const (
	// Retry 表示操作员已在浏览器中手工修正（或确认页面就绪），重新执行同一步。
	Retry Decision = iota + 1
	// Skip 表示放弃该来源。
	Skip
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Decider 由外部（控制台操作员或测试）注入。
type Decider interface {
	Decide(ctx context.Context, source string, err error) (Decision, error)
}

// DeciderFunc 让普通函数实现 Decider。
type DeciderFunc func(ctx context.Context, source string, err error) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, source string, err error) (Decision, error) {
	return f(ctx, source, err)
}

// Outcome 是一次 Do 的结果。Skipped 为 true 时 Value 为零值。
type Outcome[T any] struct {
	Value    T
	Skipped  bool
	Failures []error
}

// Do 执行 fn，失败时询问 d，直到成功或选择跳过。
//
// 返回 error 仅表示循环本身无法继续（ctx 结束、Decider 出错或给出未知决定）；
// fn 的失败记录在 Outcome.Failures 中。d 为 nil 时第一次失败即跳过。
func Do[T any](ctx context.Context, source string, d Decider, fn func(ctx context.Context) (T, error)) (Outcome[T], error) {
	var out Outcome[T]
	for {
		v, err := fn(ctx)
		if err == nil {
			out.Value = v
			return out, nil
		}
		out.Failures = append(out.Failures, err)
		if cerr := ctx.Err(); cerr != nil {
			return out, cerr
		}
		if d == nil {
			out.Skipped = true
			return out, nil
		}
		dec, derr := d.Decide(ctx, source, err)
		if derr != nil {
			return out, fmt.Errorf("%s：等待操作员决定：%w", source, derr)
		}
		switch dec {
		case Retry:
			continue
		case Skip:
			out.Skipped = true
			return out, nil
		default:
			return out, fmt.Errorf("%s：未知决定 %v", source, dec)
		}
	}
}
