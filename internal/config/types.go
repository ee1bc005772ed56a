package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// RepoRoot: 包含 assets/ 的仓库根目录。
	RepoRoot string          `json:"repo_root"`
	Datasets []DatasetConfig `json:"datasets"`
	// FPS/Scale: nil 表示未设置；显式的 0 交由 Validate 报错。
	FPS   *float64 `json:"fps,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
	// Strict: 左右帧数量不一致时是否失败；nil 表示未设置（默认 true）。
	Strict  *bool   `json:"strict,omitempty"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// DatasetConfig: 单个数据集。LeftDir/RightDir/Artifact 为空时按目录布局推断。
type DatasetConfig struct {
	Name     string `json:"name"`
	LeftDir  string `json:"left_dir,omitempty"`
	RightDir string `json:"right_dir,omitempty"`
	Artifact string `json:"artifact,omitempty"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Enumerator string `json:"enumerator"`
	Stitcher   string `json:"stitcher"`
	Scaler     string `json:"scaler"`
	Encoder    string `json:"encoder"`
	Writer     string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Enumerator json.RawMessage `json:"enumerator,omitempty"`
	Stitcher   json.RawMessage `json:"stitcher,omitempty"`
	Scaler     json.RawMessage `json:"scaler,omitempty"`
	Encoder    json.RawMessage `json:"encoder,omitempty"`
	Writer     json.RawMessage `json:"writer,omitempty"`
}

// 未设置时的帧率与缩放系数
const (
	DefaultFPS   = 12.0
	DefaultScale = 1.0
)

// FPSOrDefault 返回生效的帧率。
func (c Config) FPSOrDefault() float64 {
	if c.FPS == nil {
		return DefaultFPS
	}
	return *c.FPS
}

// ScaleOrDefault 返回生效的缩放系数。
func (c Config) ScaleOrDefault() float64 {
	if c.Scale == nil {
		return DefaultScale
	}
	return *c.Scale
}

// Float64 返回 v 的指针，便于构造覆盖层。
func Float64(v float64) *float64 { return &v }

// StrictOrDefault 返回生效的严格模式（未设置为 true）。
func (c Config) StrictOrDefault() bool {
	if c.Strict == nil {
		return true
	}
	return *c.Strict
}

// DatasetNames 返回数据集名称列表（保持配置顺序）。
func (c Config) DatasetNames() []string {
	out := make([]string, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		out = append(out, d.Name)
	}
	return out
}
