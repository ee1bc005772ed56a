package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Logger 为最小结构化日志器：单行 JSON 写入轮转文件，失败时退回 stderr。
type Logger struct {
	corrID   string
	level    Level
	sink     *RotatingFile
	fallback io.Writer
	mu       sync.Mutex
}

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/stereogif-current.txt，10 MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerWithSink(corrID, level, NewRotatingFileWith("logs", defaultLogPrefix, defaultLogMaxBytes, 5))
}

// NewLoggerWithSink 使用给定 sink；sink 为 nil 时直接写 stderr。
func NewLoggerWithSink(corrID, level string, sink *RotatingFile) *Logger {
	return &Logger{corrID: corrID, level: ParseLevel(level), sink: sink, fallback: os.Stderr}
}

// ParseLevel 解析级别名，未知值按 info 处理。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// CorrID 返回本日志器的关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Event 为标准事件结构。
type Event struct {
	Level   string            `json:"level"`
	TS      string            `json:"ts"`
	CorrID  string            `json:"corr_id"`
	Comp    string            `json:"comp"`
	Stage   string            `json:"stage"` // start|finish|error|warn
	Code    string            `json:"code,omitempty"`
	DurMS   int64             `json:"dur_ms,omitempty"`
	Count   int64             `json:"count,omitempty"`
	Dataset string            `json:"dataset,omitempty"`
	Frame   string            `json:"frame,omitempty"`
	Msg     string            `json:"msg"`
	KV      map[string]string `json:"kv,omitempty"`
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = l.fallback.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(l.fallback, "logger sink error: %v\n", err)
		_, _ = l.fallback.Write(append(b, '\n'))
	}
}

// Close 关闭文件 sink。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", "", nil)
}

// StartWith 记录带 dataset/frame 的 start。
func (l *Logger) StartWith(comp, msg, dataset, frame string) *Timer {
	return l.StartWithKV(comp, msg, dataset, frame, nil)
}

// StartWithKV 记录带 dataset/frame 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, dataset, frame string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.log(Info, Event{Comp: comp, Stage: "start", Dataset: dataset, Frame: frame, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, dataset: dataset, frame: frame, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 dataset/frame。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, dataset, frame string) {
	l.ErrorWithKV(comp, code, msg, durSince, dataset, frame, nil)
}

// ErrorWithKV 支持附带键值对（例如出错文件名、错误文本）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, dataset, frame string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, Dataset: dataset, Frame: frame, KV: kv})
}

// WarnWithKV 记录非致命的降级事件（例如非严格模式下的截断）。
func (l *Logger) WarnWithKV(comp, msg, dataset string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Dataset: dataset, Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, dataset, frame string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", Dataset: dataset, Frame: frame, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l       *Logger
	comp    string
	dataset string
	frame   string
	t0      time.Time
}

// Finish 记录 finish 并累计耗时指标；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0).Milliseconds()
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: d, Count: count, Dataset: t.dataset, Frame: t.frame, Msg: msg})
	ObserveDuration(t.comp, msg, d)
}
