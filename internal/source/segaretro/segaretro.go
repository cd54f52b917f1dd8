package segaretro

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

// Provider 实现 Sega Retro 的主来源解析。
//
// 约束：
// - 条形码与名称都直接作为 wiki 标题访问（条形码页面会重定向到作品页）
// - 同一页面列出多个机种、多个地区的发行日期，且嵌套表格所在行号不固定，
// 必须按“表格标题 = 机种 + 地区单元格 = Region”定位，不能按下标
type Provider struct {
	// BaseURL 为空时使用 https://segaretro.org。
	BaseURL string
	// Region 是发行日期行中的地区标记，例如 "FR"。
	Region string
	// System 是嵌套表格标题中的机种名称，例如 "Sega Master System"；为空时不过滤。
	System string
}

func (Provider) Name() string { return "segaretro" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://segaretro.org"
	}
	return strings.TrimRight(u, "/")
}

// PageURL 返回查找键对应的 wiki 页面地址。
func (p Provider) PageURL(key domain.LookupKey) string {
	title := key.Raw
	if key.Kind == domain.KeyName {
		title = strings.ReplaceAll(title, " ", "_")
	}
	return p.baseURL() + "/index.php?title=" + url.QueryEscape(title)
}

// Lookup 打开页面；MediaWiki 的“无此页面”提示视为 ErrNotFound。
func (p Provider) Lookup(ctx context.Context, page browser.Page, key domain.LookupKey) (string, error) {
	if key.Raw == "" {
		return "", errors.New("查找键不能为空")
	}
	if err := page.Navigate(ctx, p.PageURL(key)); err != nil {
		return "", err
	}
	n, err := page.Count(ctx, ".noarticletext")
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", source.ErrNotFound
	}
	return page.URL(ctx)
}

// Parse 解析作品名称与目标地区的发行日期。
func (p Provider) Parse(html []byte, pageURL string) (domain.Identity, error) {
	if len(html) == 0 {
		return domain.Identity{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Identity{}, err
	}

	name := browser.NormSpace(doc.Find("#firstHeading").First().Text())
	if name == "" {
		name = browser.NormSpace(doc.Find("#p-cactions > h2").First().Text())
	}
	if name == "" {
		return domain.Identity{}, &source.FormatError{Label: "title", Selector: "#firstHeading"}
	}

	raw, err := p.readDate(doc)
	if err != nil {
		return domain.Identity{}, err
	}
	date, err := domain.ParsePartialDate(domain.StripAnnotations(raw))
	if err != nil {
		return domain.Identity{}, err
	}

	return domain.Identity{Name: name, URL: strings.TrimSpace(pageURL), Date: date}, nil
}

const datesSelector = "#mw-content-text table table"

func (p Provider) readDate(doc *goquery.Document) (string, error) {
	region := strings.TrimSpace(p.Region)
	system := strings.ToLower(browser.NormSpace(p.System))

	var (
		raw   string
		found bool
	)
	doc.Find(datesSelector).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if system != "" {
			caption := strings.ToLower(browser.NormSpace(table.Find("caption").First().Text()))
			if !strings.Contains(caption, system) {
				return true
			}
		}
		table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			if !rowHasRegion(tr, region) {
				return true
			}
			raw = browser.NormSpace(tr.Find("span[itemprop=datePublished]").First().Text())
			found = raw != ""
			return !found
		})
		return !found
	})
	if !found {
		return "", &source.FormatError{Label: "release date " + region + " " + p.System, Selector: datesSelector}
	}
	return raw, nil
}

func rowHasRegion(tr *goquery.Selection, region string) bool {
	if region == "" {
		return true
	}
	has := false
	tr.Children().EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if browser.NormSpace(cell.Text()) == region {
			has = true
			return false
		}
		return true
	})
	return has
}
