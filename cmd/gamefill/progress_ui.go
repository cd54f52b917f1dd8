package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/gamefill/internal/app/run"
	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run 层事件渲染成终端上的简洁进度行。
//
// 约束：
// - 只写 stderr（或在 stderr 非 TTY 时 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 不启动后台 goroutine：等待操作员输入时不能有 keepalive 行插入提示中间
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
	ok        int
	fail      int
	abort     int

	okStyle   lipgloss.Style
	failStyle lipgloss.Style
	dimStyle  lipgloss.Style
}

func newProgressUI(w io.Writer) *progressUI {
	r := lipgloss.NewRenderer(w)
	return &progressUI{
		w:         w,
		okStyle:   r.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true),
		failStyle: r.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true),
		dimStyle:  r.NewStyle().Faint(true),
	}
}

func (p *progressUI) OnStart(runID string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] gamefill run %s\n", now.Format("15:04:05"), runID)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", orNone(eff.Source))
	fmt.Fprintf(p.w, "  target: %s\n", truncate(eff.TargetBaseURL, 120))
	fmt.Fprintf(p.w, "  primary: %s (region=%s system=%s)\n", truncate(eff.PrimaryBaseURL, 80), eff.PrimaryRegion, eff.PrimarySystem)
	fmt.Fprintf(p.w, "  skip: %s\n", formatStringListJSON(eff.Skip))
	fmt.Fprintf(p.w, "  pictures: %d 张/件 %s\n", len(eff.Template.Pictures), formatStringListJSON(eff.PictureExtensions))
	fmt.Fprintf(p.w, "  browser: headless=%s\n", onOff(eff.Headless))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnState(seq int, key string, st run.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.dimStyle.Render(fmt.Sprintf("[%d] %s -> %s", seq, truncate(key, 60), st)))
}

func (p *progressUI) OnItemDone(res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := res.Key
	if key == "" {
		key = "<unknown>"
	}

	switch res.Status {
	case domain.StatusDone:
		p.ok++
		fmt.Fprintf(p.w, "[%d] %s %s name=%q%s occurrence=%q pictures=%d (%s)\n",
			res.Seq, key, p.okStyle.Render("OK"), res.Name, formatReuse(res), res.OccurrenceSaved,
			len(res.Pictures), formatShortDuration(dur),
		)
	default:
		status := "FAIL"
		if res.Status == domain.StatusAborted {
			status = "ABORT"
			p.abort++
		} else {
			p.fail++
		}
		chain := formatAttemptChain(res.Attempts, -1)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d] %s %s %s: %s%s (%s)\n",
			res.Seq, key, p.failStyle.Render(status), res.ErrorCode, truncate(res.ErrorMsg, 160), chain,
			formatShortDuration(dur),
		)
	}
	fmt.Fprintf(p.w, "进度: ok=%d fail=%d abort=%d elapsed=%s\n",
		p.ok, p.fail, p.abort, formatElapsed(time.Since(p.startedAt)))
}

func formatReuse(res domain.ItemResult) string {
	switch {
	case res.ReleaseReused:
		return fmt.Sprintf(" release=%q(复用)", res.ReleaseSaved)
	case res.ConceptReused:
		return fmt.Sprintf(" concept=%q(复用)", res.ConceptSaved)
	}
	return ""
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(无，使用内置默认)"
	}
	return s
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatAttemptChain 只展示失败或跳过的尝试。
func formatAttemptChain(attempts []domain.SourceAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		st := strings.TrimSpace(a.Stage)
		if st == "ok" {
			continue
		}
		s := strings.TrimSpace(a.Source) + ":" + st
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
