package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LaunchConfig 描述如何得到一个可控的 Chrome。
type LaunchConfig struct {
	// DebuggerURL 非空时直接连接已有浏览器（不负责关闭进程）。
	DebuggerURL string
	Bin         string
	Headless    bool
}

// Browser 持有 rod 连接；每个窗口通过 OpenWindow 得到一个 Page。
type Browser struct {
	rb       *rod.Browser
	launch   *launcher.Launcher
	timeouts Timeouts
}

// Launch 启动（或连接）浏览器。
func Launch(ctx context.Context, cfg LaunchConfig, t Timeouts) (*Browser, error) {
	controlURL := cfg.DebuggerURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("启动浏览器：%w", err)
		}
		controlURL = u
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("连接浏览器：%w", err)
	}
	return &Browser{rb: rb, launch: l, timeouts: t}, nil
}

// OpenWindow 打开一个新窗口（不是新标签）：每个角色独占一个窗口。
func (b *Browser) OpenWindow(ctx context.Context) (Page, error) {
	p, err := b.rb.Page(proto.TargetCreateTarget{URL: "about:blank", NewWindow: true})
	if err != nil {
		return nil, fmt.Errorf("打开窗口：%w", err)
	}
	return &rodPage{p: p, t: b.timeouts}, nil
}

// Close 关闭浏览器连接；若浏览器由本进程启动则一并清理进程。
func (b *Browser) Close() error {
	if b == nil || b.rb == nil {
		return nil
	}
	err := b.rb.Close()
	if b.launch != nil {
		b.launch.Cleanup()
	}
	return err
}

type rodPage struct {
	p *rod.Page
	t Timeouts
}

var _ Page = (*rodPage)(nil)

func (r *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, r.t.PageLoad)
	defer cancel()
	p := r.p.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("打开 %s：%w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待 %s 加载：%w", url, err)
	}
	return nil
}

func (r *rodPage) URL(ctx context.Context) (string, error) {
	info, err := r.p.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (r *rodPage) Title(ctx context.Context) (string, error) {
	info, err := r.p.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (r *rodPage) HTML(ctx context.Context) ([]byte, error) {
	s, err := r.p.Context(ctx).HTML()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (r *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := r.p.Context(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (r *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := r.p.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%s：%w", selector, ErrNoElement)
	}
	return el, nil
}

func (r *rodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := r.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (r *rodPage) TagName(ctx context.Context, selector string) (string, error) {
	el, err := r.element(ctx, selector)
	if err != nil {
		return "", err
	}
	res, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (r *rodPage) Input(ctx context.Context, selector, value string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Input(value)
}

func (r *rodPage) SelectText(ctx context.Context, selector, text string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	exact := `^\s*` + regexp.QuoteMeta(text) + `\s*$`
	if err := el.Select([]string{exact}, true, rod.SelectorTypeRegex); err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return fmt.Errorf("%s=%q：%w", selector, text, ErrNoChoice)
		}
		return err
	}
	return nil
}

func (r *rodPage) ClickText(ctx context.Context, selector, text string) error {
	exact := `^\s*` + regexp.QuoteMeta(text) + `\s*$`
	has, el, err := r.p.Context(ctx).HasR(selector, exact)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%s[text=%q]：%w", selector, text, ErrNoElement)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (r *rodPage) Click(ctx context.Context, selector string) error {
	if _, err := r.element(ctx, selector); err != nil {
		return err
	}
	// Django admin 的 add-row 链接是 JS 处理的，直接触发 DOM click 比模拟鼠标更稳定。
	_, err := r.p.Context(ctx).Eval(`(sel) => document.querySelector(sel).click()`, selector)
	return err
}

func (r *rodPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.SetFiles(paths)
}

func (r *rodPage) Submit(ctx context.Context, formSelector string) error {
	if _, err := r.element(ctx, formSelector); err != nil {
		return err
	}
	_, err := r.p.Context(ctx).Eval(`(sel) => document.querySelector(sel).submit()`, formSelector)
	return err
}

func (r *rodPage) Activate(ctx context.Context) error {
	_, err := r.p.Context(ctx).Activate()
	return err
}

func (r *rodPage) Close() error { return r.p.Close() }
