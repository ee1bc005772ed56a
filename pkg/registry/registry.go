package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"stereogif/pkg/contract"
	egif "stereogif/plugins/encoder/gif"
	efs "stereogif/plugins/enumerator/filesystem"
	srs "stereogif/plugins/scaler/resample"
	shs "stereogif/plugins/stitcher/hstack"
	wfs "stereogif/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

// NewEnumerator 工厂签名：接收原样 JSON Options。
type NewEnumerator func(raw json.RawMessage) (contract.Enumerator, error)

// NewStitcher 工厂签名：接收原样 JSON Options。
type NewStitcher func(raw json.RawMessage) (contract.Stitcher, error)

// NewScaler 工厂签名：接收原样 JSON Options。
type NewScaler func(raw json.RawMessage) (contract.Scaler, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Enumerator 工厂注册表（显式、零反射）。
var Enumerator = map[string]NewEnumerator{
	// fs: 单层目录枚举 + 数字/字典序排序
	"fs": func(raw json.RawMessage) (contract.Enumerator, error) {
		var opts efs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return efs.New(&opts), nil
	},
}

// Stitcher 工厂注册表。
var Stitcher = map[string]NewStitcher{
	// hstack: 左右横向拼接
	"hstack": func(raw json.RawMessage) (contract.Stitcher, error) {
		var opts shs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return shs.New(&opts)
	},
}

// Scaler 工厂注册表。
var Scaler = map[string]NewScaler{
	"resample": func(raw json.RawMessage) (contract.Scaler, error) {
		var opts srs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return srs.New(&opts)
	},
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// gif: 调色板量化 + 无限循环
	"gif": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts egif.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return egif.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Names 返回注册表中的实现名（排序后），用于错误提示。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
