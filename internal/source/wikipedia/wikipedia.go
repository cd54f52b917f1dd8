package wikipedia

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/source"
)

const (
	LabelDeveloper = "Developer(s)"
	LabelPublisher = "Publisher(s)"
)

// DefaultFields 是信息框中开发商/发行商的位置（第 3、4 行）。
// 位置只是“期望”：标签文本不符时抓取失败，由操作员处理。
var DefaultFields = []source.Field{
	{Label: LabelDeveloper, Selector: "#mw-content-text table.infobox.hproduct > tbody > tr:nth-child(3) > th"},
	{Label: LabelPublisher, Selector: "#mw-content-text table.infobox.hproduct > tbody > tr:nth-child(4) > th"},
}

// Provider 通过搜索引擎的“直达第一条结果”跳转到英文维基百科条目。
type Provider struct {
	// SearchURL 为空时使用 https://www.google.fr/search。
	SearchURL string
	// Site 为空时使用 en.wikipedia.org。
	Site string
	// Suffix 追加在名称后用于消歧，为空时使用 " (video game)"。
	Suffix string
	// Fields 为空时使用 DefaultFields。
	Fields []source.Field
}

func (Provider) Name() string { return "wikipedia" }

func (p Provider) site() string {
	if s := strings.TrimSpace(p.Site); s != "" {
		return s
	}
	return "en.wikipedia.org"
}

func (p Provider) fields() []source.Field {
	if len(p.Fields) > 0 {
		return p.Fields
	}
	return DefaultFields
}

// QueryURL 返回“直达”搜索地址。
func (p Provider) QueryURL(name string) string {
	base := strings.TrimSpace(p.SearchURL)
	if base == "" {
		base = "https://www.google.fr/search"
	}
	suffix := p.Suffix
	if suffix == "" {
		suffix = " (video game)"
	}
	q := url.Values{}
	q.Set("q", name+suffix+" site:"+p.site())
	q.Set("btnI", "I")
	return base + "?" + q.Encode()
}

// Lookup 打开直达链接。搜索引擎有时停在中转页，此时跟随页面上第一个条目链接；
// 最终不在维基百科上视为 ErrNotFound。
func (p Provider) Lookup(ctx context.Context, page browser.Page, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("名称不能为空")
	}
	if err := page.Navigate(ctx, p.QueryURL(name)); err != nil {
		return "", err
	}
	cur, err := page.URL(ctx)
	if err != nil {
		return "", err
	}
	if p.onSite(cur) {
		return cur, nil
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	href := p.firstArticleLink(html)
	if href == "" {
		return "", source.ErrNotFound
	}
	if err := page.Navigate(ctx, href); err != nil {
		return "", err
	}
	cur, err = page.URL(ctx)
	if err != nil {
		return "", err
	}
	if !p.onSite(cur) {
		return "", source.ErrNotFound
	}
	return cur, nil
}

func (p Provider) onSite(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.site()) && strings.HasPrefix(u.Path, "/wiki/")
}

func (p Provider) firstArticleLink(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if p.onSite(h) {
			href = h
			return false
		}
		return true
	})
	return href
}

// Parse 抓取信息框中的开发商与发行商（全部标签校验通过才返回）。
func (p Provider) Parse(html []byte, pageURL string) (domain.Enrichment, error) {
	if len(html) == 0 {
		return domain.Enrichment{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Enrichment{}, err
	}
	values, err := source.ScrapeFields(doc, p.fields())
	if err != nil {
		return domain.Enrichment{}, err
	}
	return domain.Enrichment{
		URL:       strings.TrimSpace(pageURL),
		Developer: values[LabelDeveloper],
		Publisher: values[LabelPublisher],
	}, nil
}
