package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "STEREOGIF_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	strict := true
	return Config{
		RepoRoot: ".",
		Datasets: []DatasetConfig{{Name: "25"}, {Name: "50"}},
		FPS:      Float64(DefaultFPS),
		Scale:    Float64(DefaultScale),
		Strict:   &strict,
		Logging:  Logging{Level: "info"},
		Components: Components{
			Enumerator: "fs",
			Stitcher:   "hstack",
			Scaler:     "resample",
			Encoder:    "gif",
			Writer:     "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；数据集列表整体替换，不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.RepoRoot); s != "" {
		out.RepoRoot = s
	}
	if len(over.Datasets) > 0 {
		out.Datasets = append([]DatasetConfig(nil), over.Datasets...)
	}
	if over.FPS != nil {
		out.FPS = Float64(*over.FPS)
	}
	if over.Scale != nil {
		out.Scale = Float64(*over.Scale)
	}
	if over.Strict != nil {
		v := *over.Strict
		out.Strict = &v
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}

	// 组件名（空不覆盖）
	out.Components.Enumerator = pick(out.Components.Enumerator, over.Components.Enumerator)
	out.Components.Stitcher = pick(out.Components.Stitcher, over.Components.Stitcher)
	out.Components.Scaler = pick(out.Components.Scaler, over.Components.Scaler)
	out.Components.Encoder = pick(out.Components.Encoder, over.Components.Encoder)
	out.Components.Writer = pick(out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	out.Options.Enumerator = pickRaw(out.Options.Enumerator, over.Options.Enumerator)
	out.Options.Stitcher = pickRaw(out.Options.Stitcher, over.Options.Stitcher)
	out.Options.Scaler = pickRaw(out.Options.Scaler, over.Options.Scaler)
	out.Options.Encoder = pickRaw(out.Options.Encoder, over.Options.Encoder)
	out.Options.Writer = pickRaw(out.Options.Writer, over.Options.Writer)
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 STEREOGIF_；集合之外的键忽略；数值/布尔值非法时返回错误。
// 支持：REPO_ROOT, DATASETS, FPS, SCALE, STRICT, LOG_LEVEL, COMPONENTS_*, OPTIONS_*_JSON。
// CONFIG_FILE / CONFIG_JSON 由入口读取，不在此处理。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空 config.json 中的值
			continue
		}
		switch key {
		case "REPO_ROOT":
			over.RepoRoot = val
		case "DATASETS":
			over.Datasets = DatasetsFromNames(SplitComma(val))
		case "FPS":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return over, fmt.Errorf("env %sFPS: %w", EnvPrefix, err)
			}
			over.FPS = &f
		case "SCALE":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return over, fmt.Errorf("env %sSCALE: %w", EnvPrefix, err)
			}
			over.Scale = &f
		case "STRICT":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("env %sSTRICT: %w", EnvPrefix, err)
			}
			over.Strict = &b
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "COMPONENTS_ENUMERATOR":
			over.Components.Enumerator = val
		case "COMPONENTS_STITCHER":
			over.Components.Stitcher = val
		case "COMPONENTS_SCALER":
			over.Components.Scaler = val
		case "COMPONENTS_ENCODER":
			over.Components.Encoder = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_ENUMERATOR_JSON":
			over.Options.Enumerator = json.RawMessage(val)
		case "OPTIONS_STITCHER_JSON":
			over.Options.Stitcher = json.RawMessage(val)
		case "OPTIONS_SCALER_JSON":
			over.Options.Scaler = json.RawMessage(val)
		case "OPTIONS_ENCODER_JSON":
			over.Options.Encoder = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		}
	}
	return over, nil
}

// DatasetsFromNames 由名称列表构造数据集（目录与工件按布局推断）。
func DatasetsFromNames(names []string) []DatasetConfig {
	if len(names) == 0 {
		return nil
	}
	out := make([]DatasetConfig, 0, len(names))
	for _, n := range names {
		out = append(out, DatasetConfig{Name: n})
	}
	return out
}

func pick(cur, over string) string {
	if s := strings.TrimSpace(over); s != "" {
		return s
	}
	return cur
}

func pickRaw(cur, over json.RawMessage) json.RawMessage {
	if len(over) == 0 {
		return cur
	}
	return cloneRaw(over)
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// SplitComma 按逗号切分并去除空白与空项。
func SplitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
