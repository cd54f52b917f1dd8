package operator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/gamefill/internal/app/retry"
	"github.com/John-Robertt/gamefill/internal/domain"
)

func newConsole(input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	return NewConsole(strings.NewReader(input), &out), &out
}

func TestDecide(t *testing.T) {
	c, out := newConsole("what\nR\ns\n")
	ctx := context.Background()

	d, err := c.Decide(ctx, "wikipedia", errors.New("期望标签 \"Publisher(s)\""))
	require.NoError(t, err)
	require.Equal(t, retry.Retry, d)
	require.Contains(t, out.String(), "wikipedia 抓取失败")
	require.Contains(t, out.String(), `无法识别的输入 "what"`)

	d, err = c.Decide(ctx, "wikipedia", errors.New("x"))
	require.NoError(t, err)
	require.Equal(t, retry.Skip, d)
}

func TestDecide_EOF(t *testing.T) {
	c, _ := newConsole("")
	_, err := c.Decide(context.Background(), "giantbomb", errors.New("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestCompleteManually(t *testing.T) {
	c, out := newConsole("\n")
	require.NoError(t, c.CompleteManually(context.Background(), "Developer", "Sega", errors.New("选项不存在")))
	require.Contains(t, out.String(), "请在浏览器中手工填写 Developer")
}

func TestManualEnrichment_OnlyAsksMissingFields(t *testing.T) {
	c, out := newConsole("Namco\n")
	rec := domain.Record{Concept: domain.Concept{Name: "Alex Kidd", Developer: "Sega"}}

	en, err := c.ManualEnrichment(context.Background(), "wikipedia", rec)
	require.NoError(t, err)
	require.Equal(t, "", en.Developer)
	require.Equal(t, "Namco", en.Publisher)
	require.Equal(t, "manual:wikipedia", en.Source)
	require.NotContains(t, out.String(), "Developer:")
}

func TestNextKey(t *testing.T) {
	c, _ := newConsole("111222333444\nAlex Kidd\n\n")
	ctx := context.Background()

	k, ok, err := c.NextKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "111222333444", k)

	k, ok, err = c.NextKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Alex Kidd", k)

	_, ok, err = c.NextKey(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.NextKey(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadLine_LastLineWithoutNewline(t *testing.T) {
	c, _ := newConsole("Sonic")
	k, ok, err := c.NextKey(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Sonic", k)
}

func TestReadLine_CancelledContext(t *testing.T) {
	c, _ := newConsole("r\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Decide(ctx, "wikipedia", errors.New("x"))
	require.ErrorIs(t, err, context.Canceled)
}
