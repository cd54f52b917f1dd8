package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/domain"
)

// ErrNotFound 表示来源站点明确报告“没有该条目”。这是预期结果，不是致命错误。
var ErrNotFound = errors.New("来源中未找到条目")

// Resolver 是主来源：根据查找键定位规范页面并解析出作品身份。
//
// 约束（与补充来源相同）：
// - Lookup 只负责在 page 中导航到详情页并返回其 URL；找不到时返回 ErrNotFound
// - Parse 必须是纯函数：相同输入 => 相同输出
// - 站点变化只影响对应子包，核心流程只依赖接口
type Resolver interface {
	Name() string
	Lookup(ctx context.Context, p browser.Page, key domain.LookupKey) (pageURL string, err error)
	Parse(html []byte, pageURL string) (domain.Identity, error)
}

// Enricher 是补充来源：根据作品名称搜索并抓取若干带标签的字段。
type Enricher interface {
	Name() string
	Lookup(ctx context.Context, p browser.Page, name string) (pageURL string, err error)
	Parse(html []byte, pageURL string) (domain.Enrichment, error)
}

// Error 是来源阶段的可追溯错误，Stage 为 "lookup" 或 "parse"。
type Error struct {
	Source string
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolve 在 page 上执行主来源的 Lookup + Parse。
func Resolve(ctx context.Context, r Resolver, p browser.Page, key domain.LookupKey) (domain.Identity, error) {
	pageURL, err := r.Lookup(ctx, p, key)
	if err != nil {
		return domain.Identity{}, &Error{Source: r.Name(), Stage: "lookup", Err: err}
	}
	html, err := p.HTML(ctx)
	if err != nil {
		return domain.Identity{}, &Error{Source: r.Name(), Stage: "lookup", Err: err}
	}
	id, err := r.Parse(html, pageURL)
	if err != nil {
		return domain.Identity{}, &Error{Source: r.Name(), Stage: "parse", Err: err}
	}
	id.URL = pageURL
	return id, nil
}

// Enrich 在 page 上执行补充来源的 Lookup + Parse。
// Parse 失败时不返回任何部分字段（整步要么全部成功，要么什么都不提交）。
func Enrich(ctx context.Context, e Enricher, p browser.Page, name string) (domain.Enrichment, error) {
	pageURL, err := e.Lookup(ctx, p, name)
	if err != nil {
		return domain.Enrichment{}, &Error{Source: e.Name(), Stage: "lookup", Err: err}
	}
	return scrape(ctx, e, p, pageURL)
}

// Reparse 不做 Lookup，直接解析 page 当前显示的页面。
// 用于解析失败后的重试：操作员可能已在浏览器中把窗口换到了正确的条目。
func Reparse(ctx context.Context, e Enricher, p browser.Page) (domain.Enrichment, error) {
	pageURL, err := p.URL(ctx)
	if err != nil {
		return domain.Enrichment{}, &Error{Source: e.Name(), Stage: "lookup", Err: err}
	}
	return scrape(ctx, e, p, pageURL)
}

func scrape(ctx context.Context, e Enricher, p browser.Page, pageURL string) (domain.Enrichment, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return domain.Enrichment{}, &Error{Source: e.Name(), Stage: "lookup", Err: err}
	}
	en, err := e.Parse(html, pageURL)
	if err != nil {
		return domain.Enrichment{}, &Error{Source: e.Name(), Stage: "parse", Err: err}
	}
	en.Source = e.Name()
	en.URL = pageURL
	return en, nil
}

// Stage 提取来源错误所处阶段；不是 *Error 时返回空串。
func Stage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
