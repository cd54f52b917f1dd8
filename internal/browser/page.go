// Package browser 封装浏览器自动化能力：核心流程只依赖 Page 接口，具体实现基于 rod。
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoElement 表示 selector 在当前页面上没有匹配的元素。
	ErrNoElement = errors.New("browser: 元素不存在")
	// ErrNoChoice 表示 <select> 中没有可见文本匹配的选项。
	ErrNoChoice = errors.New("browser: 选项不存在")
)

// Page 是核心流程依赖的最小浏览器能力集合（一个窗口/标签页）。
//
// 约束：
// - 所有方法都是阻塞调用，超时由 ctx 控制
// - 元素不存在时返回包装了 ErrNoElement 的错误，不做等待重试
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) ([]byte, error)

	Count(ctx context.Context, selector string) (int, error)
	Text(ctx context.Context, selector string) (string, error)
	TagName(ctx context.Context, selector string) (string, error)

	Input(ctx context.Context, selector, value string) error
	// SelectText 按可见文本（精确匹配）选中 <select> 的选项。
	SelectText(ctx context.Context, selector, text string) error
	// ClickText 点击 selector 匹配的元素中文本（去首尾空白后）等于 text 的那一个。
	ClickText(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	SetFiles(ctx context.Context, selector string, paths []string) error
	Submit(ctx context.Context, formSelector string) error

	Activate(ctx context.Context) error
	Close() error
}

// Timeouts 刻意不对称：页面加载很短，人工参与的等待几乎无限。
type Timeouts struct {
	PageLoad   time.Duration
	Human      time.Duration
	Dependents time.Duration
	Poll       time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		PageLoad:   30 * time.Second,
		Human:      100 * time.Hour,
		Dependents: 10 * time.Second,
		Poll:       250 * time.Millisecond,
	}
}

// WaitUntil 按 interval 轮询 cond，直到返回 true、返回错误或 ctx 结束。
func WaitUntil(ctx context.Context, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// WaitTitle 阻塞直到页面标题等于 title（用于等待人工登录完成）。
func WaitTitle(ctx context.Context, p Page, title string, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := WaitUntil(ctx, interval, func(ctx context.Context) (bool, error) {
		got, err := p.Title(ctx)
		if err != nil {
			return false, err
		}
		return got == title, nil
	})
	if err != nil {
		return fmt.Errorf("等待页面标题 %q：%w", title, err)
	}
	return nil
}

// WaitCount 阻塞直到 selector 匹配的元素数量 >= min。
// 元素暂不存在不视为错误（继续轮询）。
func WaitCount(ctx context.Context, p Page, selector string, min int, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := WaitUntil(ctx, interval, func(ctx context.Context) (bool, error) {
		n, err := p.Count(ctx, selector)
		if err != nil {
			return false, err
		}
		return n >= min, nil
	})
	if err != nil {
		return fmt.Errorf("等待 %s 数量 >= %d：%w", selector, min, err)
	}
	return nil
}

// WaitText 阻塞直到 selector 匹配的元素出现且文本包含 substr，返回完整文本。
func WaitText(ctx context.Context, p Page, selector, substr string, timeout, interval time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var text string
	err := WaitUntil(ctx, interval, func(ctx context.Context) (bool, error) {
		n, err := p.Count(ctx, selector)
		if err != nil || n == 0 {
			return false, err
		}
		s, err := p.Text(ctx, selector)
		if err != nil {
			if errors.Is(err, ErrNoElement) {
				return false, nil
			}
			return false, err
		}
		if !containsFold(s, substr) {
			return false, nil
		}
		text = s
		return true, nil
	})
	if err != nil {
		return "", fmt.Errorf("等待 %s 出现文本 %q：%w", selector, substr, err)
	}
	return text, nil
}
