//go:build !windows

package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

// TestListNonRegular 非常规文件被忽略 (Unix only - uses mkfifo)
func TestListNonRegular(t *testing.T) {
	dir := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(dir, "3.png"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	touch(t, dir, "0.png")
	got, err := New(nil).List(context.Background(), dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equal(names(got), []string{"0.png"}) {
		t.Fatalf("fifo should be skipped: %v", names(got))
	}
}

// TestListSymlink 指向常规文件的符号链接被接受；悬空链接忽略；可关闭跟随
func TestListSymlink(t *testing.T) {
	src := t.TempDir()
	touch(t, src, "real.png")
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(src, "real.png"), filepath.Join(dir, "0.png")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(src, "gone.png"), filepath.Join(dir, "1.png")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	got, err := New(nil).List(context.Background(), dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equal(names(got), []string{"0.png"}) {
		t.Fatalf("symlink handling: %v", names(got))
	}

	off := false
	got, err = New(&Options{FollowSymlinks: &off}).List(context.Background(), dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("symlinks should be skipped: %v", names(got))
	}
}
