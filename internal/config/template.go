package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 数据集 25/50，目录按 assets 布局推断；
// - Writer 输出到 <repo_root>/assets；
// - 选项包含全部键，值为中性默认。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		RepoRoot: d.RepoRoot,
		Datasets: []DatasetConfig{
			{Name: "25", LeftDir: "", RightDir: "", Artifact: ""},
			{Name: "50", LeftDir: "", RightDir: "", Artifact: ""},
		},
		FPS:        d.FPS,
		Scale:      d.Scale,
		Strict:     d.Strict,
		Logging:    Logging{Level: "info"},
		Components: d.Components,
	}
	cfg.Options.Enumerator = json.RawMessage(`{
  "allow_exts": [".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"],
  "follow_symlinks": true
}`)
	cfg.Options.Stitcher = json.RawMessage(`{
  "height_policy": "pad",
  "background": "#000000"
}`)
	cfg.Options.Scaler = json.RawMessage(`{
  "kernel": "catmullrom"
}`)
	cfg.Options.Encoder = json.RawMessage(`{
  "palette": "plan9",
  "dither": true
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
