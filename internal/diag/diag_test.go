package diag

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stereogif/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFileWith(dir, "", 30, 0)
	defer w.Close()
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 超长首行不触发空文件轮转
func TestRotatingFileOversizedFirstLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFileWith(dir, "", 4, 0)
	defer w.Close()
	require.NoError(t, w.WriteLine([]byte("0123456789")))
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ents, 1)
}

// keep 限制历史文件数量
func TestRotatingFilePrune(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFileWith(dir, "gif", 10, 2)
	defer w.Close()
	for i := 0; i < 6; i++ {
		require.NoError(t, w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")))
	}
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasCurrent := false
	rotated := 0
	for _, e := range ents {
		switch {
		case e.Name() == "gif-current.txt":
			hasCurrent = true
		case strings.HasPrefix(e.Name(), "gif-"):
			rotated++
		}
	}
	assert.True(t, hasCurrent, "current 文件应存在")
	assert.LessOrEqual(t, rotated, 2)
	assert.GreaterOrEqual(t, rotated, 1)
}

// 直接覆盖 ensureOpen 与 rotate 内部分支
func TestRotatingFileEnsureAndRotate(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFileWith(dir, "", 1024, 0)
	defer w.Close()
	if err := w.ensureOpen(); err != nil {
		t.Fatalf("ensureOpen: %v", err)
	}
	if w.f == nil {
		t.Fatalf("file should be opened")
	}
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) < 2 {
		t.Fatalf("expect >=2 files, got %d", len(ents))
	}
	// f==nil 时 rotate 退化为打开
	_ = w.f.Close()
	w.f = nil
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate without open: %v", err)
	}
}

// UT-DIAG-02: 指标计数
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("gif", "finish", "success")
	IncOp("gif", "finish", "success")
	IncError("decode", "decode")
	ObserveDuration("hstack", "stitch", 7)
	snap := Snapshot()
	assert.Equal(t, int64(2), snap["op_total{gif,finish,success}"])
	assert.Equal(t, int64(1), snap["error_total{decode,decode}"])
	assert.Equal(t, int64(7), snap["op_duration_ms{hstack,stitch}"])
	assert.Equal(t, []string{
		"error_total{decode,decode}",
		"op_duration_ms{hstack,stitch}",
		"op_total{gif,finish,success}",
	}, MetricKeys())
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("left: %w", contract.ErrDirMissing), CodeConfig},
		{fmt.Errorf("0.png: %w", contract.ErrDecode), CodeDecode},
		{contract.ErrPairMismatch, CodePairing},
		{contract.ErrEmptyInput, CodeEmpty},
		{contract.ErrInvalidInput, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "err=%v", c.err)
	}
}

func TestNowUTC(t *testing.T) {
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
}

// Logger 写入 sink 的 JSON 行结构
func TestLoggerWritesJSONEvents(t *testing.T) {
	dir := t.TempDir()
	corr := NewCorrID()
	l := NewLoggerWithSink(corr, "debug", NewRotatingFileWith(dir, "", 0, 0))
	tm := l.StartWith("pipeline", "dataset", "25", "")
	tm.Finish("dataset", 3)
	l.ErrorWithKV("decode", string(CodeDecode), "decode failed", nil, "25", "7", map[string]string{"file": "7.jpg"})
	l.WarnWithKV("pairing", "truncated", "50", map[string]string{"left": "2", "right": "3"})
	l.DebugStart("config", "effective", "", "", map[string]string{"fps": "12"})
	require.NoError(t, l.Close())

	f, err := os.Open(filepath.Join(dir, "stereogif-current.txt"))
	require.NoError(t, err)
	defer f.Close()
	var evs []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		evs = append(evs, ev)
	}
	require.Len(t, evs, 5)
	assert.Equal(t, corr, evs[0].CorrID)
	assert.Equal(t, "start", evs[0].Stage)
	assert.Equal(t, "25", evs[1].Dataset)
	assert.Equal(t, int64(3), evs[1].Count)
	assert.Equal(t, "error", evs[2].Level)
	assert.Equal(t, "7.jpg", evs[2].KV["file"])
	assert.Equal(t, "warn", evs[3].Level)
	assert.Equal(t, "debug", evs[4].Level)
}

// 级别过滤与 nil 接收者
func TestLoggerLevelsAndFilter(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	assert.Equal(t, Warn, ParseLevel("WARNING"))
	assert.Equal(t, Info, ParseLevel("bogus"))

	dir := t.TempDir()
	l := NewLoggerWithSink("c", "error", NewRotatingFileWith(dir, "", 0, 0))
	l.Start("comp", "msg").Finish("msg", 1)
	l.DebugStart("comp", "msg", "", "", nil)
	_ = l.Close()
	if _, err := os.Stat(filepath.Join(dir, "stereogif-current.txt")); !os.IsNotExist(err) {
		t.Fatalf("error 级别下 info 事件不应落盘: %v", err)
	}

	var ln *Logger
	ln.Error("comp", "code", "msg", nil)
	assert.Nil(t, ln.Start("comp", "msg"))
	assert.Equal(t, "", ln.CorrID())
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

// sink 为空时写回退输出
func TestLoggerFallback(t *testing.T) {
	var sb strings.Builder
	l := NewLoggerWithSink("corr", "info", nil)
	l.fallback = &sb
	start := time.Now().Add(-10 * time.Millisecond)
	l.Error("pipeline", "io", "boom", &start)
	assert.Contains(t, sb.String(), `"corr_id":"corr"`)
	assert.Contains(t, sb.String(), `"stage":"error"`)
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart(12, 0.5, 2)
	term.DatasetStart("25", 199)
	term.FrameProgress(6, 199) // 非 TTY：不输出进度
	term.DatasetFinish(true, "preprocessed_25.gif", 5100*time.Millisecond)
	term.DatasetStart("50", 3)
	term.DatasetFinish(false, "", 20*time.Millisecond)
	term.RunFinish(false, 41300*time.Millisecond)

	out := sb.String()
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "[run] fps=12 | scale=0.5 | 数据集=2")
	assert.Contains(t, out, "[dataset] 25 | 帧对=199")
	assert.Contains(t, out, "[done] 25 | 帧 199 | preprocessed_25.gif | 用时 5.1s")
	assert.Contains(t, out, "[fail] 50 | 用时 20ms")
	assert.Contains(t, out, "[fail] 全部完成 | 数据集 2 | 总用时 41.3s")
}

// UT-DIAG-04: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(12, 1, 1)
	term.DatasetStart("25", 3)

	term.FrameProgress(1, 3)
	first := sb.String()
	if !strings.Contains(first, "\r[dataset] 25 | 帧 1/3") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	term.FrameProgress(2, 3)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	time.Sleep(120 * time.Millisecond)
	term.FrameProgress(2, 3)
	if len(sb.String()) <= len(first) {
		t.Fatalf("third progress should append output")
	}
	term.DatasetFinish(false, "", 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	if idx < 0 {
		t.Fatalf("finish should include fail line: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

// UT-DIAG-05: 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.RunStart(1, 1, 1)
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.DatasetStart("a", 0)
	term.FrameProgress(0, 0)
	term.DatasetFinish(true, "", 0)
	term.RunFinish(true, 0)
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, 1, 1)
	tn.DatasetStart("a", 1)
	tn.FrameProgress(0, 0)
	tn.DatasetFinish(true, "", 0)
	tn.RunFinish(true, 0)
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	term := NewTerminal(os.Stderr, true)
	if term.isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
	assert.Equal(t, "0.5", formatFloat(0.5))
	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
	SetTerminal(NewTerminal(os.Stderr, false))
	assert.NotNil(t, GetTerminal())
	SetTerminal(nil)
}
