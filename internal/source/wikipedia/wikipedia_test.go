package wikipedia

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/gamefill/internal/browser/browsertest"
	"github.com/John-Robertt/gamefill/internal/source"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return string(b)
}

func TestParse_Infobox(t *testing.T) {
	en, err := Provider{}.Parse([]byte(readFixture(t, "alex_kidd.html")), "https://en.wikipedia.org/wiki/Alex_Kidd_in_Miracle_World")
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if en.Developer != "Sega" || en.Publisher != "Sega" {
		t.Fatalf("字段不符合预期：%+v", en)
	}
}

func TestParse_ShiftedRowFailsWithoutValues(t *testing.T) {
	en, err := Provider{}.Parse([]byte(readFixture(t, "shifted.html")), "https://en.wikipedia.org/wiki/Spy_vs._Spy")
	var fe *source.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("期望 *source.FormatError，实际 %v", err)
	}
	if fe.Label != LabelPublisher || fe.Got != "Director(s)" {
		t.Fatalf("FormatError 不符合预期：%+v", fe)
	}
	if en.Developer != "" || en.Publisher != "" {
		t.Fatalf("失败时不应带出任何字段：%+v", en)
	}
}

func TestQueryURL(t *testing.T) {
	u, err := url.Parse(Provider{}.QueryURL("Alex Kidd"))
	if err != nil {
		t.Fatalf("QueryURL 不是合法 URL：%v", err)
	}
	if got := u.Query().Get("q"); got != "Alex Kidd (video game) site:en.wikipedia.org" {
		t.Fatalf("q 不符合预期：%q", got)
	}
	if u.Query().Get("btnI") != "I" {
		t.Fatalf("缺少 btnI 参数：%s", u)
	}
}

func TestEnrich_DirectRedirect(t *testing.T) {
	p := Provider{SearchURL: "https://search.test/search"}
	article := "https://en.wikipedia.org/wiki/Alex_Kidd_in_Miracle_World"

	page := browsertest.New()
	page.Redirects[p.QueryURL("Alex Kidd in Miracle World")] = article
	page.Pages[article] = readFixture(t, "alex_kidd.html")

	en, err := source.Enrich(context.Background(), p, page, "Alex Kidd in Miracle World")
	if err != nil {
		t.Fatalf("Enrich 失败：%v", err)
	}
	if en.Source != "wikipedia" || en.URL != article || en.Developer != "Sega" {
		t.Fatalf("Enrichment 不符合预期：%+v", en)
	}
}

// 直达链接落在错误条目时，操作员在窗口里换到正确条目后，重新解析必须读取当前页面，
// 而不是再走一遍直达链接回到错误条目。
func TestReparse_KeepsOperatorCorrection(t *testing.T) {
	p := Provider{SearchURL: "https://search.test/search"}
	wrong := "https://en.wikipedia.org/wiki/Spy_vs._Spy"
	article := "https://en.wikipedia.org/wiki/Alex_Kidd_in_Miracle_World"
	query := p.QueryURL("Alex Kidd")

	page := browsertest.New()
	page.Redirects[query] = wrong
	page.Pages[wrong] = readFixture(t, "shifted.html")
	page.Pages[article] = readFixture(t, "alex_kidd.html")

	ctx := context.Background()
	_, err := source.Enrich(ctx, p, page, "Alex Kidd")
	if source.Stage(err) != "parse" {
		t.Fatalf("期望 parse 阶段失败，实际 %v", err)
	}

	if err := page.Navigate(ctx, article); err != nil {
		t.Fatalf("Navigate 失败：%v", err)
	}
	en, err := source.Reparse(ctx, p, page)
	if err != nil {
		t.Fatalf("Reparse 失败：%v", err)
	}
	if en.Source != "wikipedia" || en.URL != article || en.Developer != "Sega" || en.Publisher != "Sega" {
		t.Fatalf("Enrichment 不符合预期：%+v", en)
	}
	if len(page.Visited) != 2 || page.Visited[0] != query || page.Visited[1] != article {
		t.Fatalf("直达链接只应打开一次：%v", page.Visited)
	}
}

func TestLookup_FollowsRedirectNotice(t *testing.T) {
	p := Provider{SearchURL: "https://search.test/search"}
	article := "https://en.wikipedia.org/wiki/Alex_Kidd_in_Miracle_World"

	page := browsertest.New()
	page.Pages[p.QueryURL("Alex Kidd")] = readFixture(t, "redirect_notice.html")
	page.Pages[article] = readFixture(t, "alex_kidd.html")

	got, err := p.Lookup(context.Background(), page, "Alex Kidd")
	if err != nil {
		t.Fatalf("Lookup 失败：%v", err)
	}
	if got != article {
		t.Fatalf("期望跟随中转页到 %q，实际 %q", article, got)
	}
}

func TestLookup_NotOnSite(t *testing.T) {
	p := Provider{SearchURL: "https://search.test/search"}
	page := browsertest.New()
	page.Pages[p.QueryURL("Nothing")] = "<html><body><p>No results</p></body></html>"

	_, err := p.Lookup(context.Background(), page, "Nothing")
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际 %v", err)
	}

	_, err = source.Enrich(context.Background(), p, page, "Nothing")
	if source.Stage(err) != "lookup" || !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("期望 lookup 阶段的 ErrNotFound，实际 %v", err)
	}
}
