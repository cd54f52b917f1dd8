package browsertest

import (
	"context"
	"errors"

	"github.com/John-Robertt/gamefill/internal/browser"
)

// Opener 依次返回预置的 Page；预置用完后自动新建。
type Opener struct {
	Pages  []*Page
	Opened []*Page
	// FailAt 为 >0 时，第 FailAt 次打开返回错误（从 1 开始计数）。
	FailAt int
}

func (o *Opener) OpenWindow(ctx context.Context) (browser.Page, error) {
	if o.FailAt > 0 && len(o.Opened)+1 == o.FailAt {
		return nil, errors.New("browsertest: 打开窗口失败")
	}
	var p *Page
	if len(o.Opened) < len(o.Pages) {
		p = o.Pages[len(o.Opened)]
	} else {
		p = New()
	}
	o.Opened = append(o.Opened, p)
	return p, nil
}
