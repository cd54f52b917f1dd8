package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/gamefill/internal/app/run"
	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
)

func TestFormatAttemptChain(t *testing.T) {
	attempts := []domain.SourceAttempt{
		{Source: "segaretro", Stage: "ok"},
		{Source: "wikipedia", Stage: "lookup", ErrorMsg: "来源中未找到条目"},
		{Source: "wikipedia", Stage: "skip"},
	}
	got := formatAttemptChain(attempts, -1)
	want := "wikipedia:lookup:来源中未找到条目;wikipedia:skip"
	if got != want {
		t.Fatalf("期望 %q，实际 %q", want, got)
	}
	if got := formatAttemptChain(attempts, 1); got != "wikipedia:lookup:来源中未找到条目" {
		t.Fatalf("max=1 时期望只保留第一条，实际 %q", got)
	}
	if got := formatAttemptChain(nil, -1); got != "" {
		t.Fatalf("期望空串，实际 %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  abcdef  ", 5); got != "ab..." {
		t.Fatalf("期望 ab...，实际 %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("期望原样返回，实际 %q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("期望 01:02:03，实际 %q", got)
	}
	if got := formatShortDuration(-time.Second); got != "0.0s" {
		t.Fatalf("期望 0.0s，实际 %q", got)
	}
}

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	eff := config.Defaults()
	eff.Skip = []string{"giantbomb"}
	p.OnStart("run-1", eff)
	p.OnState(1, "4974365631014", run.StateResolvePrimary)
	p.OnItemDone(domain.ItemResult{
		Seq: 1, Key: "4974365631014", Status: domain.StatusDone,
		Name: "Alex Kidd", OccurrenceSaved: "Alex Kidd #1", Pictures: []string{"a.jpg", "b.jpg"},
		ConceptReused: true, ConceptSaved: "Alex Kidd",
	}, 1500*time.Millisecond)
	p.OnItemDone(domain.ItemResult{
		Seq: 2, Key: "Nope", Status: domain.StatusAborted, ErrorCode: domain.ErrCodeNotFound,
		ErrorMsg: "来源中未找到条目",
		Attempts: []domain.SourceAttempt{{Source: "segaretro", Stage: "lookup", ErrorMsg: "来源中未找到条目"}},
	}, time.Second)

	out := buf.String()
	for _, want := range []string{
		"gamefill run run-1",
		`skip: ["giantbomb"]`,
		"[1] 4974365631014 -> resolve_primary",
		`[1] 4974365631014`,
		`concept="Alex Kidd"(复用)`,
		"pictures=2 (1.5s)",
		"[2] Nope",
		"ABORT",
		"not_found: 来源中未找到条目 attempts=segaretro:lookup:来源中未找到条目",
		"ok=1 fail=0 abort=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("期望输出包含 %q，实际：\n%s", want, out)
		}
	}
}
