// Package operator 是控制台上的人工操作员：重试/跳过决定、手工补全确认、
// 手工录入补充字段，以及交互模式下读取下一个查找键。
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/gamefill/internal/app/retry"
	"github.com/John-Robertt/gamefill/internal/domain"
)

// ErrClosed 表示输入已结束（EOF），操作员无法再作答。
var ErrClosed = errors.New("operator: 输入已关闭")

// Console 通过一对 Reader/Writer 与操作员交互；所有读取都是阻塞的。
type Console struct {
	in  *bufio.Reader
	out io.Writer

	errStyle    lipgloss.Style
	warnStyle   lipgloss.Style
	promptStyle lipgloss.Style
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:          bufio.NewReader(in),
		out:         out,
		errStyle:    r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		warnStyle:   r.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		promptStyle: r.NewStyle().Bold(true),
	}
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line != "" {
				return strings.TrimSpace(line), nil
			}
			return "", ErrClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, c.promptStyle.Render(prompt))
	return c.readLine(ctx)
}

// Decide 实现 retry.Decider：r 重试（操作员已修正页面），s 跳过该来源。
func (c *Console) Decide(ctx context.Context, source string, cause error) (retry.Decision, error) {
	fmt.Fprintln(c.out, c.errStyle.Render(fmt.Sprintf("%s 抓取失败：%v", source, cause)))
	for {
		ans, err := c.ask(ctx, "请在浏览器中修正后输入 r 重试，或输入 s 跳过该来源 [r/s]: ")
		if err != nil {
			return 0, err
		}
		switch strings.ToLower(ans) {
		case "r", "retry":
			return retry.Retry, nil
		case "s", "skip":
			return retry.Skip, nil
		}
		fmt.Fprintln(c.out, c.warnStyle.Render(fmt.Sprintf("无法识别的输入 %q", ans)))
	}
}

// CompleteManually 实现 target.Prompter：提示字段无法自动填写，阻塞到操作员回车确认。
func (c *Console) CompleteManually(ctx context.Context, field, want string, cause error) error {
	fmt.Fprintln(c.out, c.warnStyle.Render(fmt.Sprintf("无法自动填写 %s（期望 %q）：%v", field, want, cause)))
	_, err := c.ask(ctx, fmt.Sprintf("请在浏览器中手工填写 %s，完成后按回车继续...", field))
	return err
}

// ManualEnrichment 在补充来源被跳过时由操作员录入字段；直接回车表示留空。
func (c *Console) ManualEnrichment(ctx context.Context, source string, rec domain.Record) (domain.Enrichment, error) {
	fmt.Fprintln(c.out, c.warnStyle.Render(fmt.Sprintf("已跳过 %s，请手工录入 %q 的字段（回车留空）", source, rec.Concept.Name)))
	en := domain.Enrichment{Source: "manual:" + source}
	if rec.Concept.Developer == "" {
		v, err := c.ask(ctx, "Developer: ")
		if err != nil {
			return domain.Enrichment{}, err
		}
		en.Developer = v
	}
	if rec.Release.Publisher == "" {
		v, err := c.ask(ctx, "Publisher: ")
		if err != nil {
			return domain.Enrichment{}, err
		}
		en.Publisher = v
	}
	return en, nil
}

// NextKey 读取下一个条码或名称；空行或 EOF 表示结束（ok=false）。
func (c *Console) NextKey(ctx context.Context) (string, bool, error) {
	ans, err := c.ask(ctx, "条码或名称（回车结束）: ")
	if errors.Is(err, ErrClosed) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if ans == "" {
		return "", false, nil
	}
	return ans, true, nil
}

// Acknowledge 打印致命错误并等待操作员确认（之后才释放浏览器资源）。
func (c *Console) Acknowledge(ctx context.Context, cause error) {
	fmt.Fprintln(c.out, c.errStyle.Render(fmt.Sprintf("错误：%v", cause)))
	_, _ = c.ask(ctx, "按回车退出...")
}

// Notify 打印一行普通提示。
func (c *Console) Notify(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Warn 打印一行警告。
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, c.warnStyle.Render(msg))
}
