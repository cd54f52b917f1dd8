package giantbomb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/source"
)

const (
	LabelDeveloper = "Developer"
	LabelPublisher = "Publisher"
)

var DefaultFields = []source.Field{
	{Label: LabelDeveloper, Selector: "div.wiki-details table > tbody > tr:nth-child(4) > th"},
	{Label: LabelPublisher, Selector: "div.wiki-details table > tbody > tr:nth-child(5) > th"},
}

const (
	resultSelector   = "#js-sort-filter-results > li"
	titleSelector    = "h3.title"
	platformSelector = "ul.system-list > li"
)

// Provider 实现 Giant Bomb 的补充来源。
//
// 约束：
// - 必须先搜索再进入详情页（详情 URL 含站内 id，无法拼出）
// - 搜索结果有歧义时按 Platform（机种缩写，如 "SMS"）消歧
type Provider struct {
	// BaseURL 为空时使用 https://www.giantbomb.com。
	BaseURL  string
	Platform string
	Fields   []source.Field
}

func (Provider) Name() string { return "giantbomb" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.giantbomb.com"
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) fields() []source.Field {
	if len(p.Fields) > 0 {
		return p.Fields
	}
	return DefaultFields
}

// SearchURL 返回限定为游戏的搜索地址。
func (p Provider) SearchURL(name string) string {
	return p.baseURL() + "/search/?i=game&q=" + url.QueryEscape(name)
}

// Lookup 搜索并进入详情页。
func (p Provider) Lookup(ctx context.Context, page browser.Page, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("名称不能为空")
	}
	if err := page.Navigate(ctx, p.SearchURL(name)); err != nil {
		return "", err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	href, err := p.findDetailHref(html, name)
	if err != nil {
		return "", err
	}
	detail := source.ResolveURL(p.baseURL()+"/", href)
	if err := page.Navigate(ctx, detail); err != nil {
		return "", err
	}
	return page.URL(ctx)
}

type result struct {
	href      string
	title     string
	platforms []string
}

func (r result) on(platform string) bool {
	for _, s := range r.platforms {
		if strings.EqualFold(s, platform) {
			return true
		}
	}
	return false
}

func (p Provider) findDetailHref(html []byte, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	var results []result
	doc.Find(resultSelector).Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		r := result{href: href, title: browser.NormSpace(li.Find(titleSelector).First().Text())}
		li.Find(platformSelector).Each(func(_ int, s *goquery.Selection) {
			r.platforms = append(r.platforms, browser.NormSpace(s.Text()))
		})
		results = append(results, r)
	})

	switch len(results) {
	case 0:
		return "", source.ErrNotFound
	case 1:
		return results[0].href, nil
	}

	platform := strings.TrimSpace(p.Platform)
	if platform == "" {
		return "", fmt.Errorf("搜索结果有 %d 条且未配置机种缩写，无法消歧", len(results))
	}
	var onPlatform []result
	for _, r := range results {
		if r.on(platform) {
			onPlatform = append(onPlatform, r)
		}
	}
	switch len(onPlatform) {
	case 0:
		return "", source.ErrNotFound
	case 1:
		return onPlatform[0].href, nil
	}
	// 同一机种仍有多条：优先标题完全一致的那条，否则取第一条（搜索引擎的相关度排序）。
	for _, r := range onPlatform {
		if strings.EqualFold(r.title, browser.NormSpace(name)) {
			return r.href, nil
		}
	}
	return onPlatform[0].href, nil
}

// Parse 抓取详情表中的开发商与发行商。
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
