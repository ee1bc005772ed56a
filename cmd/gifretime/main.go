package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stereogif/internal/diag"
	"stereogif/internal/retime"
	"stereogif/pkg/contract"
	egif "stereogif/plugins/encoder/gif"
	wfs "stereogif/plugins/writer/filesystem"
)

// 按时间轴抽帧，将已有 GIF 转为更低帧率。
// 旗标：--input（必需）, --dst-fps, --output, --palette, --log-level
func main() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	os.Exit(run())
}

func run() int {
	start := time.Now()
	var (
		flagInput    string
		flagDstFPS   float64
		flagOutput   string
		flagPalette  string
		flagLogLevel string
	)
	flag.StringVar(&flagInput, "input", "", "输入 GIF 路径（必需）")
	flag.Float64Var(&flagDstFPS, "dst-fps", 12, "目标帧率（>0）")
	flag.StringVar(&flagOutput, "output", "", "输出路径；缺省为 <输入目录>/<名>_<帧率>fps.gif")
	flag.StringVar(&flagPalette, "palette", "", "调色板 plan9|websafe（缺省 plan9）")
	flag.StringVar(&flagLogLevel, "log-level", "info", "日志级别 debug|info|warn|error")
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 3
	}

	logger := diag.NewLogger(diag.NewCorrID(), flagLogLevel)
	defer func() { _ = logger.Close() }()

	if strings.TrimSpace(flagInput) == "" {
		fprintf(os.Stderr, "缺少 --input\n")
		return 3
	}
	if !(flagDstFPS > 0) {
		fprintf(os.Stderr, "--dst-fps 必须 > 0（实得 %v）\n", flagDstFPS)
		return 3
	}
	out := flagOutput
	if out == "" {
		out = retime.DefaultOutputPath(flagInput, flagDstFPS)
	}
	enc, err := egif.New(&egif.Options{Palette: flagPalette})
	if err != nil {
		fprintf(os.Stderr, "编码器配置错误: %v\n", err)
		return 3
	}
	// 输出路径原样落盘，允许任意目录
	w, err := wfs.New(&wfs.Options{OutputDir: filepath.Dir(out)})
	if err != nil {
		fprintf(os.Stderr, "输出路径无效: %v\n", err)
		return 3
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := os.Open(flagInput)
	if err != nil {
		fprintf(os.Stderr, "读取失败: %v\n", err)
		logger.Error("retime", string(diag.Classify(err)), "open failed", &start)
		return 1
	}
	defer in.Close()

	t := logger.StartWithKV("retime", "convert", "", filepath.Base(flagInput), map[string]string{
		"dst_fps": strconv.FormatFloat(flagDstFPS, 'g', -1, 64),
		"output":  out,
	})
	r, st, err := retime.Convert(ctx, in, flagDstFPS, enc)
	if err != nil {
		fprintf(os.Stderr, "转换失败: %v\n", err)
		logger.Error("retime", string(diag.Classify(err)), "convert failed", &start)
		return 1
	}
	if err := w.Write(ctx, contract.ArtifactID(filepath.Base(out)), r); err != nil {
		fprintf(os.Stderr, "写出失败: %v\n", err)
		logger.Error("writer", string(diag.Classify(err)), "write failed", &start)
		return 1
	}
	t.Finish("convert", int64(st.DstFrames))
	fmt.Printf("已写出: %s（帧 %d -> %d，%s fps）\n", out, st.SrcFrames, st.DstFrames, strconv.FormatFloat(flagDstFPS, 'g', -1, 64))
	return 0
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
