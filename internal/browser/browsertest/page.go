// Package browsertest 提供内存版 browser.Page，用 goquery 模拟 DOM，供各包测试使用。
package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/gamefill/internal/browser"
)

// Page 是 browser.Page 的内存实现。
//
// 导航时从 Pages 取 HTML（支持 Redirects），表单操作只做记录并校验元素存在；
// 需要改变 DOM 的行为（增加行、提交后跳转）通过 OnClick/OnSubmit 钩子实现。
type Page struct {
	Pages     map[string]string
	Redirects map[string]string
	// NavigateErr 按 URL 注入导航错误。
	NavigateErr map[string]error

	OnClick  map[string]func(p *Page)
	OnSubmit func(p *Page, form string)

	Inputs   map[string]string
	Selected map[string]string
	Files    map[string][]string
	Clicks   []string
	Submits  []string
	Visited  []string

	Activations int
	Closed      bool

	url string
	doc *goquery.Document
}

var _ browser.Page = (*Page)(nil)

func New() *Page {
	p := &Page{
		Pages:       map[string]string{},
		Redirects:   map[string]string{},
		NavigateErr: map[string]error{},
		OnClick:     map[string]func(p *Page){},
		Inputs:      map[string]string{},
		Selected:    map[string]string{},
		Files:       map[string][]string{},
	}
	p.SetHTML("about:blank", "<html><head></head><body></body></html>")
	return p
}

// SetHTML 直接替换当前页面（URL + DOM）。
func (p *Page) SetHTML(url, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("browsertest: 无法解析 HTML：%v", err))
	}
	p.url = url
	p.doc = doc
}

// Doc 暴露当前 DOM，供钩子修改。
func (p *Page) Doc() *goquery.Document { return p.doc }

func (p *Page) CurrentURL() string { return p.url }

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Visited = append(p.Visited, url)
	if err := p.NavigateErr[url]; err != nil {
		return err
	}
	final := url
	for i := 0; i < 8; i++ {
		next, ok := p.Redirects[final]
		if !ok {
			break
		}
		final = next
	}
	html, ok := p.Pages[final]
	if !ok {
		html = "<html><head><title>404</title></head><body></body></html>"
	}
	p.SetHTML(final, html)
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) { return p.url, nil }

func (p *Page) Title(ctx context.Context) (string, error) {
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *Page) HTML(ctx context.Context) ([]byte, error) {
	s, err := p.doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	s := p.doc.Find(selector)
	if s.Length() == 0 {
		return nil, fmt.Errorf("%s：%w", selector, browser.ErrNoElement)
	}
	return s.First(), nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	return p.doc.Find(selector).Length(), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	s, err := p.find(selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.Text()), nil
}

func (p *Page) TagName(ctx context.Context, selector string) (string, error) {
	s, err := p.find(selector)
	if err != nil {
		return "", err
	}
	return goquery.NodeName(s), nil
}

func (p *Page) Input(ctx context.Context, selector, value string) error {
	if _, err := p.find(selector); err != nil {
		return err
	}
	p.Inputs[selector] = value
	return nil
}

func (p *Page) SelectText(ctx context.Context, selector, text string) error {
	s, err := p.find(selector)
	if err != nil {
		return err
	}
	found := false
	s.Find("option").EachWithBreak(func(_ int, o *goquery.Selection) bool {
		if browser.NormSpace(o.Text()) == browser.NormSpace(text) {
			found = true
			return false
		}
		return true
	})
	if !found {
		return fmt.Errorf("%s=%q：%w", selector, text, browser.ErrNoChoice)
	}
	p.Selected[selector] = text
	return nil
}

func (p *Page) ClickText(ctx context.Context, selector, text string) error {
	found := false
	p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if browser.NormSpace(s.Text()) == browser.NormSpace(text) {
			found = true
			return false
		}
		return true
	})
	if !found {
		return fmt.Errorf("%s[text=%q]：%w", selector, text, browser.ErrNoElement)
	}
	p.Clicks = append(p.Clicks, selector+"|"+text)
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if _, err := p.find(selector); err != nil {
		return err
	}
	p.Clicks = append(p.Clicks, selector)
	if h := p.OnClick[selector]; h != nil {
		h(p)
	}
	return nil
}

func (p *Page) SetFiles(ctx context.Context, selector string, paths []string) error {
	if _, err := p.find(selector); err != nil {
		return err
	}
	p.Files[selector] = append([]string(nil), paths...)
	return nil
}

func (p *Page) Submit(ctx context.Context, formSelector string) error {
	if _, err := p.find(formSelector); err != nil {
		return err
	}
	p.Submits = append(p.Submits, formSelector)
	if p.OnSubmit != nil {
		p.OnSubmit(p, formSelector)
	}
	return nil
}

func (p *Page) Activate(ctx context.Context) error {
	p.Activations++
	return nil
}

func (p *Page) Close() error {
	p.Closed = true
	return nil
}

// CountClicks 统计对 selector 的点击次数。
func (p *Page) CountClicks(selector string) int {
	n := 0
	for _, c := range p.Clicks {
		if c == selector {
			n++
		}
	}
	return n
}

// GrowOnClick 模拟 Django admin 的 add-row：每次点击在 empty-form 模板行之前插入 row(i)，
// i 为新行的下标（从 0 开始）。
func (p *Page) GrowOnClick(table string, row func(i int) string) {
	p.OnClick[table+" .add-row > td > a"] = func(p *Page) {
		n := p.doc.Find(table+" tr.form-row").Length() - 1
		p.doc.Find(table + " tr.empty-form").BeforeHtml(row(n))
	}
}
