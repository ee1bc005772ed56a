package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFile 将日志行追加到 <dir>/<prefix>-current.txt，按大小轮转。
// 轮转时当前文件改名为 <prefix>-<UTC 纳秒时间戳>.txt；keep>0 时仅保留最近 keep 个历史文件。
type RotatingFile struct {
	dir      string
	prefix   string
	maxBytes int64
	keep     int

	mu      sync.Mutex
	f       *os.File
	curSize int64
}

const (
	defaultLogPrefix   = "stereogif"
	defaultLogMaxBytes = 10 * 1024 * 1024
)

// NewRotatingFileWith 创建轮转文件：prefix 为空取默认前缀，maxBytes<=0 取 10 MiB，keep<=0 不清理历史。
func NewRotatingFileWith(dir, prefix string, maxBytes int64, keep int) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = defaultLogMaxBytes
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultLogPrefix
	}
	return &RotatingFile{dir: dir, prefix: prefix, maxBytes: maxBytes, keep: keep}
}

func (w *RotatingFile) currentPath() string {
	return filepath.Join(w.dir, w.prefix+"-current.txt")
}

// WriteLine 写入一行（自动补换行），必要时先轮转。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpen(); err != nil {
		return err
	}
	line := make([]byte, 0, len(b)+1)
	line = append(append(line, b...), '\n')
	if w.curSize > 0 && w.curSize+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(line)
	w.curSize += int64(n)
	return err
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.currentPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.curSize = 0
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	_ = w.f.Close()
	w.f = nil
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	rotated := filepath.Join(w.dir, fmt.Sprintf("%s-%s.txt", w.prefix, ts))
	if err := os.Rename(w.currentPath(), rotated); err != nil {
		return fmt.Errorf("rename rotated file: %w", err)
	}
	w.prune()
	return w.ensureOpen()
}

// prune 删除超出 keep 的最旧历史文件（尽力而为，错误忽略）。
func (w *RotatingFile) prune() {
	if w.keep <= 0 {
		return
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var hist []string
	cur := filepath.Base(w.currentPath())
	for _, e := range ents {
		n := e.Name()
		if n == cur || e.IsDir() {
			continue
		}
		if strings.HasPrefix(n, w.prefix+"-") && strings.HasSuffix(n, ".txt") {
			hist = append(hist, n)
		}
	}
	// 时间戳定宽，字典序即时间序
	sort.Strings(hist)
	for len(hist) > w.keep {
		_ = os.Remove(filepath.Join(w.dir, hist[0]))
		hist = hist[1:]
	}
}

// Close 关闭当前打开的文件句柄
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
