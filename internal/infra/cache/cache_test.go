package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SaveAndReadSnapshot(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	path, err := s.SaveHTML("segaretro", "Alex Kidd in Miracle World", []byte("<html/>"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(root, "snapshots", "segaretro", "alex_kidd_in_miracle_world.html")
	if path != want {
		t.Fatalf("期望路径 %q，实际 %q", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}

	b, ok, err := s.ReadHTML("SegaRetro", "alex kidd in miracle world")
	if err != nil || !ok {
		t.Fatalf("期望命中快照，实际 ok=%v err=%v", ok, err)
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	if _, ok, err := s.ReadHTML("segaretro", "4974365631014"); err != nil || ok {
		t.Fatalf("期望未命中，实际 ok=%v err=%v", ok, err)
	}
}

func TestStore_Disabled(t *testing.T) {
	s := New("  ")
	if s.Enabled() {
		t.Fatalf("空目录期望禁用")
	}
	if _, err := s.SaveHTML("wikipedia", "x", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("期望 ErrDisabled，实际：%v", err)
	}
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.SnapshotPath("../etc", "x"); err == nil {
		t.Fatalf("期望拒绝非法 source")
	}
	if _, err := s.SnapshotPath("wikipedia", " /// "); err == nil {
		t.Fatalf("期望拒绝空 key")
	}
	p, err := s.SnapshotPath("wikipedia", "../../x")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if filepath.Base(p) != "x.html" {
		t.Fatalf("期望路径穿越被折叠，实际 %q", p)
	}
}
