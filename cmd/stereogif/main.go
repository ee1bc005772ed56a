package main

import (
	"bufio"
	"context"
	"encoding/json"
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

	cfgpkg "stereogif/internal/config"
	"stereogif/internal/diag"
	"stereogif/internal/pipeline"
	wfs "stereogif/plugins/writer/filesystem"
)

var pipelineRun = pipeline.Run

// 退出码
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// 左右相机帧 → 并排拼接 → 可选缩放 → 循环 GIF。
// 全局旗标：--fps, --scale, --repo-root, --datasets, --no-strict, --config, --init-config, --status
func main() {
	// 解析失败由 run 统一映射为退出码 3
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := diag.NewCorrID()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先以默认 level 占位，合并配置后按最终 level 重建
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Close() }()

	var (
		flagConfig   string
		flagFPS      float64
		flagScale    float64
		flagRepoRoot string
		flagDatasets string
		flagNoStrict bool
		flagInitDir  string
		flagStatus   bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	flag.Float64Var(&flagFPS, "fps", 12, "GIF 帧率（>0）")
	flag.Float64Var(&flagScale, "scale", 1.0, "拼接后整体缩放系数（>0，1 为原尺寸）")
	flag.StringVar(&flagRepoRoot, "repo-root", ".", "包含 assets/ 的仓库根目录")
	flag.StringVar(&flagDatasets, "datasets", "25,50", "逗号分隔的数据集名称")
	flag.BoolVar(&flagNoStrict, "no-strict", false, "左右帧数量不一致时截断到较短一侧（默认报错）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（若已存在则跳过，不覆盖）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	normalizeInitArg()
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if flag.NArg() > 0 {
		fprintf(os.Stderr, "不接受位置参数: %v\n", flag.Args())
		return exitConfig
	}
	// 仅显式给出的旗标参与覆盖
	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init-config failed", &start)
			return exitConfig
		}
		if err := writeConfig(filepath.Join(initDir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init-config failed", &start)
			return exitConfig
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return exitOK
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), "load failed", &start)
		return exitConfig
	}

	// CLI 覆盖
	var overCLI cfgpkg.Config
	if setFlags["repo-root"] {
		overCLI.RepoRoot = flagRepoRoot
	}
	if setFlags["datasets"] {
		names := cfgpkg.SplitComma(flagDatasets)
		if len(names) == 0 {
			fprintf(os.Stderr, "配置校验失败: --datasets 为空\n")
			return exitConfig
		}
		overCLI.Datasets = cfgpkg.DatasetsFromNames(names)
	}
	if setFlags["no-strict"] {
		strict := !flagNoStrict
		overCLI.Strict = &strict
	}
	if setFlags["fps"] {
		overCLI.FPS = cfgpkg.Float64(flagFPS)
	}
	if setFlags["scale"] {
		overCLI.Scale = cfgpkg.Float64(flagScale)
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("config", string(diag.CodeConfig), "validate failed", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别重建 logger
	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level)

	// 预检：fs writer 的输出目录可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("writer", string(diag.Classify(err)), "preflight failed", &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.CodeConfig), "assemble failed", &start)
		return exitConfig
	}

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"repo_root":  cfg.RepoRoot,
		"datasets":   strings.Join(cfg.DatasetNames(), ","),
		"fps":        strconv.FormatFloat(cfg.FPSOrDefault(), 'g', -1, 64),
		"scale":      strconv.FormatFloat(cfg.ScaleOrDefault(), 'g', -1, 64),
		"strict":     strconv.FormatBool(cfg.StrictOrDefault()),
		"enumerator": cfg.Components.Enumerator,
		"stitcher":   cfg.Components.Stitcher,
		"scaler":     cfg.Components.Scaler,
		"encoder":    cfg.Components.Encoder,
		"writer":     cfg.Components.Writer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("cli", code, "run failed", &start)
		diag.IncOp("cli", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("cli", code)
		}
		if errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "已取消\n")
			return exitRuntime
		}
		for _, r := range results {
			if r.Err != nil {
				logger.ErrorWith("cli", string(diag.Classify(r.Err)), "dataset failed", &start, string(r.Dataset), "")
				fprintf(os.Stderr, "运行失败: %v\n", r.Err)
			}
		}
		if len(results) == 0 {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return exitRuntime
	}
	var frames int64
	for _, r := range results {
		frames += int64(r.Frames)
	}
	logger.InfoFinish("cli", "run", start, frames)
	diag.IncOp("cli", "finish", "success")
	diag.ObserveDuration("cli", "finish", time.Since(start).Milliseconds())
	return exitOK
}

// preflightCheckOutputDir: fs writer 时检查输出目录可写性；其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	dir, err := cfgpkg.OutputDir(cfg)
	if err != nil || dir == "" {
		return err
	}
	return wfs.CheckWritable(dir)
}

// loadConfig: 默认值 ← JSON（--config / ENV CONFIG_FILE / CONFIG_JSON / ./config.json）← ENV 覆盖。
func loadConfig(path string) (cfgpkg.Config, error) {
	var raw []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		raw = []byte(s)
	}
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	cfg := cfgpkg.Defaults()
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.LoadJSON(path, raw)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	over, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, over), nil
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；
// - 跳过空行与 # 注释行；支持可选的前缀 "export "；
// - 仅按首个 '=' 分割；成对单/双引号去除，双引号内处理 \n \t \" \\；
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" {
			continue
		}
		val = unquote(val)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	p := cfgpkg.EnvPrefix
	var b strings.Builder
	b.WriteString("# stereogif .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 运行参数覆盖\n")
	for _, k := range []string{"REPO_ROOT", "DATASETS", "FPS", "SCALE", "STRICT", "LOG_LEVEL"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"ENUMERATOR", "STITCHER", "SCALER", "ENCODER", "WRITER"} {
		b.WriteString(p + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件选项（原样 JSON）\n")
	for _, k := range []string{"ENUMERATOR", "STITCHER", "SCALER", "ENCODER", "WRITER"} {
		b.WriteString(p + "OPTIONS_" + k + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
