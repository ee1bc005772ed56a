package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"stereogif/internal/pipeline"
	"stereogif/pkg/contract"
	"stereogif/pkg/registry"
)

// 目录布局：<repo_root>/assets/pre-processed image folders/<name>/{ego_left/rgb,ego_right/rgb}
const (
	AssetsDir = "assets"
	FramesDir = "pre-processed image folders"
)

// layouts: 按优先级尝试的左右子目录。
var layouts = [][2]string{
	{filepath.Join("ego_left", "rgb"), filepath.Join("ego_right", "rgb")},
	{"left", "right"},
}

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if fps := cfg.FPSOrDefault(); !(fps > 0) || math.IsInf(fps, 0) {
		return fmt.Errorf("config: fps must be > 0 (got %v)", fps)
	}
	if s := cfg.ScaleOrDefault(); !(s > 0) || math.IsInf(s, 0) {
		return fmt.Errorf("config: scale must be > 0 (got %v)", s)
	}
	if strings.TrimSpace(cfg.RepoRoot) == "" {
		return errors.New("config: repo_root empty")
	}
	if len(cfg.Datasets) == 0 {
		return errors.New("config: datasets empty")
	}
	seen := make(map[string]struct{}, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return errors.New("config: dataset name cannot be empty")
		}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("config: dataset name %q must be a plain directory name", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: duplicate dataset %q", name)
		}
		seen[name] = struct{}{}
	}
	d := Defaults()
	if name := effName(cfg.Components.Enumerator, d.Components.Enumerator); registry.Enumerator[name] == nil {
		return fmt.Errorf("config: enumerator %q not registered (have %v)", name, registry.Names(registry.Enumerator))
	}
	if name := effName(cfg.Components.Stitcher, d.Components.Stitcher); registry.Stitcher[name] == nil {
		return fmt.Errorf("config: stitcher %q not registered (have %v)", name, registry.Names(registry.Stitcher))
	}
	if name := effName(cfg.Components.Scaler, d.Components.Scaler); registry.Scaler[name] == nil {
		return fmt.Errorf("config: scaler %q not registered (have %v)", name, registry.Names(registry.Scaler))
	}
	if name := effName(cfg.Components.Encoder, d.Components.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("config: encoder %q not registered (have %v)", name, registry.Names(registry.Encoder))
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered (have %v)", name, registry.Names(registry.Writer))
	}
	return nil
}

// ResolveDatasets 将配置中的数据集解析为左右目录与工件名。
// 显式 left_dir/right_dir 优先（相对路径以 repo_root 为基准）；
// 否则在 assets 布局中依次尝试 ego_left/rgb 与 left，均不存在时返回首选布局路径，
// 由枚举阶段报告目录缺失。
func ResolveDatasets(cfg Config) []contract.Dataset {
	out := make([]contract.Dataset, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		name := strings.TrimSpace(d.Name)
		left, right := discover(cfg.RepoRoot, name)
		if s := strings.TrimSpace(d.LeftDir); s != "" {
			left = underRoot(cfg.RepoRoot, s)
		}
		if s := strings.TrimSpace(d.RightDir); s != "" {
			right = underRoot(cfg.RepoRoot, s)
		}
		art := contract.GIFArtifact(contract.DatasetID(name))
		if s := strings.TrimSpace(d.Artifact); s != "" {
			art = contract.NormalizeArtifactID(s)
		}
		out = append(out, contract.Dataset{
			ID:       contract.DatasetID(name),
			LeftDir:  left,
			RightDir: right,
			Artifact: art,
		})
	}
	return out
}

func discover(root, name string) (string, string) {
	base := filepath.Join(root, AssetsDir, FramesDir, name)
	for _, l := range layouts {
		left, right := filepath.Join(base, l[0]), filepath.Join(base, l[1])
		if isDir(left) && isDir(right) {
			return left, right
		}
	}
	return filepath.Join(base, layouts[0][0]), filepath.Join(base, layouts[0][1])
}

func underRoot(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// writerOptions: fs writer 未指定 output_dir 时补 <repo_root>/assets；其他键原样保留。
func writerOptions(cfg Config) (json.RawMessage, error) {
	if effName(cfg.Components.Writer, Defaults().Components.Writer) != "fs" {
		return cfg.Options.Writer, nil
	}
	m := map[string]json.RawMessage{}
	if len(cfg.Options.Writer) > 0 && strings.TrimSpace(string(cfg.Options.Writer)) != "null" {
		if err := json.Unmarshal(cfg.Options.Writer, &m); err != nil {
			return nil, fmt.Errorf("config: options.writer: %w", err)
		}
	}
	var dir string
	if raw, ok := m["output_dir"]; ok {
		_ = json.Unmarshal(raw, &dir)
	}
	if strings.TrimSpace(dir) == "" {
		b, _ := json.Marshal(filepath.Join(cfg.RepoRoot, AssetsDir))
		m["output_dir"] = b
	}
	return json.Marshal(m)
}

// OutputDir 返回 fs writer 的生效输出目录；其他 writer 返回空串。
func OutputDir(cfg Config) (string, error) {
	if effName(cfg.Components.Writer, Defaults().Components.Writer) != "fs" {
		return "", nil
	}
	raw, err := writerOptions(cfg)
	if err != nil {
		return "", err
	}
	var o struct {
		OutputDir string `json:"output_dir"`
	}
	_ = json.Unmarshal(raw, &o)
	return o.OutputDir, nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()

	en, err := registry.Enumerator[effName(cfg.Components.Enumerator, d.Components.Enumerator)](cfg.Options.Enumerator)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("enumerator: %w", err)
	}
	st, err := registry.Stitcher[effName(cfg.Components.Stitcher, d.Components.Stitcher)](cfg.Options.Stitcher)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("stitcher: %w", err)
	}
	sc, err := registry.Scaler[effName(cfg.Components.Scaler, d.Components.Scaler)](cfg.Options.Scaler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("scaler: %w", err)
	}
	enc, err := registry.Encoder[effName(cfg.Components.Encoder, d.Components.Encoder)](cfg.Options.Encoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("encoder: %w", err)
	}
	wraw, err := writerOptions(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](wraw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}

	comp := pipeline.Components{
		Enumerator: en,
		Stitcher:   st,
		Scaler:     sc,
		Encoder:    enc,
		Writer:     w,
	}
	set := pipeline.Settings{
		Datasets: ResolveDatasets(cfg),
		FPS:      cfg.FPSOrDefault(),
		Scale:    cfg.ScaleOrDefault(),
		Strict:   cfg.StrictOrDefault(),
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
