package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/operator"
	"github.com/John-Robertt/gamefill/internal/source"
	"github.com/John-Robertt/gamefill/internal/source/giantbomb"
	"github.com/John-Robertt/gamefill/internal/source/wikipedia"
)

func execRoot(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), exitCode(err)
}

func TestParseRunArgs(t *testing.T) {
	key, folder, err := parseRunArgs([]string{" 4974365631014 ", "pics"}, false)
	if err != nil || key != "4974365631014" || folder != "pics" {
		t.Fatalf("期望解析出 key 与 folder，实际 key=%q folder=%q err=%v", key, folder, err)
	}

	key, folder, err = parseRunArgs([]string{"pics"}, true)
	if err != nil || key != "" || folder != "pics" {
		t.Fatalf("交互模式期望 key 可省略，实际 key=%q folder=%q err=%v", key, folder, err)
	}

	for _, tc := range []struct {
		args        []string
		interactive bool
	}{
		{[]string{"pics"}, false},
		{nil, true},
		{[]string{"a", "b", "c"}, false},
		{[]string{" ", "pics"}, false},
		{[]string{"key", " "}, false},
	} {
		if _, _, err := parseRunArgs(tc.args, tc.interactive); exitCode(err) != 2 {
			t.Fatalf("args=%q interactive=%v：期望用法错误（退出码 2），实际 %v", tc.args, tc.interactive, err)
		}
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Fatalf("nil 期望退出码 0")
	}
	if exitCode(&exitError{code: 1}) != 1 {
		t.Fatalf("期望退出码 1")
	}
	if exitCode(errors.New("cobra")) != 2 {
		t.Fatalf("未分类错误期望退出码 2")
	}
}

func TestRun_UsageErrors(t *testing.T) {
	chdir(t, t.TempDir())

	cases := [][]string{
		{"run", "only-folder"},
		{"run", "--interactive", "--concept", "Alex Kidd", "pics"},
		{"run", "--concept", "A", "--release", "B", "key", "pics"},
		{"run", "--no-such-flag", "key", "pics"},
		{"run", "--skip", "mobygames", "key", "pics"},
	}
	for _, args := range cases {
		if _, _, code := execRoot(t, args...); code != 2 {
			t.Fatalf("args=%q：期望退出码 2，实际 %d", args, code)
		}
	}
}

func TestRun_ConfigErrorEmitsJSONReport(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	stdout, _, code := execRoot(t, "run", "--config", filepath.Join(dir, "missing.yaml"), "4974365631014", dir)
	if code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}

	var rr struct {
		Summary domain.ReportSummary `json:"summary"`
		Items   []domain.ItemResult  `json:"items"`
	}
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 期望是单个 JSON，实际 %q：%v", stdout, err)
	}
	if rr.Summary.Failed != 1 || len(rr.Items) != 1 {
		t.Fatalf("期望 1 个失败条目，实际 %+v", rr)
	}
	if rr.Items[0].ErrorCode != config.ErrCodeNotFound {
		t.Fatalf("期望 error_code=%s，实际 %s", config.ErrCodeNotFound, rr.Items[0].ErrorCode)
	}
}

func TestRun_ConfigErrorWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, _, code := execRoot(t, "run", "--config", "missing.yaml", "--report", "out/report.json", "key", dir)
	if code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out", "report.json"))
	if err != nil {
		t.Fatalf("期望写出报告文件：%v", err)
	}
	if !strings.Contains(string(b), config.ErrCodeNotFound) {
		t.Fatalf("期望报告包含 %s，实际 %s", config.ErrCodeNotFound, b)
	}
}

func TestEmitReport(t *testing.T) {
	rr := domain.RunReport{Items: []domain.ItemResult{
		{Seq: 1, Key: "a", Status: domain.StatusDone},
		{Seq: 2, Key: "b", Status: domain.StatusAborted, ErrorCode: domain.ErrCodeNotFound, ErrorMsg: "x"},
	}}
	rr.Finalize()

	var out, errOut bytes.Buffer
	emitReport(&out, &errOut, rr, true)
	if !strings.Contains(out.String(), "done=1 aborted=1 failed=0") {
		t.Fatalf("TTY 模式期望 stdout 输出摘要，实际 %q", out.String())
	}
	if !strings.Contains(errOut.String(), "b not_found: x") || strings.Contains(errOut.String(), "a ") {
		t.Fatalf("TTY 模式期望 stderr 只列出未完成条目，实际 %q", errOut.String())
	}

	out.Reset()
	errOut.Reset()
	emitReport(&out, &errOut, rr, false)
	if !json.Valid(out.Bytes()) {
		t.Fatalf("非 TTY 模式期望 stdout 为 JSON，实际 %q", out.String())
	}
	if !strings.Contains(errOut.String(), "done=1") {
		t.Fatalf("非 TTY 模式期望摘要写到 stderr，实际 %q", errOut.String())
	}
}

func TestActiveEnrichers(t *testing.T) {
	reg, err := source.NewRegistry(wikipedia.Provider{}, giantbomb.Provider{})
	if err != nil {
		t.Fatalf("NewRegistry 失败：%v", err)
	}
	got := activeEnrichers(reg, []string{" GiantBomb "})
	if len(got) != 1 || got[0] != "wikipedia" {
		t.Fatalf("期望只剩 wikipedia，实际 %v", got)
	}
	if got := activeEnrichers(reg, nil); len(got) != 2 {
		t.Fatalf("期望两个补充来源，实际 %v", got)
	}
}

func TestTemplateFrom(t *testing.T) {
	tf := config.Defaults().Template
	tpl := templateFrom(tf)
	if tpl.Nature != tf.Nature || len(tpl.Pictures) != len(tf.Pictures) || len(tpl.Attributes) != len(tf.Attributes) {
		t.Fatalf("期望逐字段复制模板，实际 %+v", tpl)
	}
	if len(tpl.Attributes) > 0 {
		tpl.Attributes[0] = "changed"
		if tf.Attributes[0] == "changed" {
			t.Fatalf("期望模板切片被复制而不是共享")
		}
	}
}

type stubKeys struct {
	keys []string
	err  error
}

func (s *stubKeys) NextKey(ctx context.Context) (string, bool, error) {
	if len(s.keys) == 0 {
		return "", false, s.err
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, true, nil
}

func TestPrefixedKeys(t *testing.T) {
	k := &prefixedKeys{first: "first", rest: &stubKeys{keys: []string{"second"}, err: operator.ErrClosed}}

	var got []string
	for {
		key, ok, err := k.NextKey(context.Background())
		if err != nil {
			t.Fatalf("输入关闭期望视为结束，实际错误 %v", err)
		}
		if !ok {
			break
		}
		got = append(got, key)
	}
	if strings.Join(got, ",") != "first,second" {
		t.Fatalf("期望 first,second，实际 %v", got)
	}
}

// chdir 等价于 Go 1.24 的 t.Chdir：切换工作目录并在测试结束时恢复。
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
