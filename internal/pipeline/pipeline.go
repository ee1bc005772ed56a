package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"stereogif/internal/diag"
	"stereogif/internal/frame"
	"stereogif/pkg/contract"
)

// - 完全串行：数据集按配置顺序处理，帧对按索引顺序追加，不引入内部并发。
// - 数据集隔离：单个数据集失败只终止该数据集，其余继续；最终合并错误。
// - 取消：ctx 取消中止当前数据集并跳过剩余数据集。
// - 不落半成品：编码完成后才交给 Writer，失败时不调用 Writer。

// Components 聚合运行所需的原子组件。
type Components struct {
	Enumerator contract.Enumerator
	Stitcher   contract.Stitcher
	Scaler     contract.Scaler
	Encoder    contract.Encoder
	Writer     contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Datasets []contract.Dataset
	// FPS: 输出帧率（>0）。
	FPS float64
	// Scale: 拼接后整体缩放系数（>0，1 为恒等）。
	Scale float64
	// Strict: 左右帧数量不一致时失败；false 则截断到较短一侧。
	Strict bool
}

// Result 记录单个数据集的处理结果。
type Result struct {
	Dataset  contract.DatasetID
	Frames   int
	Artifact contract.ArtifactID
	Err      error
	Duration time.Duration
}

// DatasetError 标记失败的数据集与阶段。
type DatasetError struct {
	Dataset contract.DatasetID
	Stage   string
	Err     error
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("dataset %s: %s: %v", e.Dataset, e.Stage, e.Err)
}

func (e *DatasetError) Unwrap() error { return e.Err }

// Run 依次处理每个数据集：枚举 → 配对 → 解码 → 拼接 → 缩放 → 编码 → 写出。
// 返回每个数据集的结果；任一数据集失败时 error 为各 DatasetError 的 errors.Join。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]Result, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	term := diag.GetTerminal()
	term.RunStart(set.FPS, set.Scale, len(set.Datasets))
	timer := logger.StartWithKV("pipeline", "run", "", "", map[string]string{
		"fps":      strconv.FormatFloat(set.FPS, 'g', -1, 64),
		"scale":    strconv.FormatFloat(set.Scale, 'g', -1, 64),
		"strict":   strconv.FormatBool(set.Strict),
		"datasets": strconv.Itoa(len(set.Datasets)),
	})

	results := make([]Result, 0, len(set.Datasets))
	var errs []error
	for _, ds := range set.Datasets {
		if err := ctx.Err(); err != nil {
			// 剩余数据集跳过，不再逐个报告
			errs = append(errs, &DatasetError{Dataset: ds.ID, Stage: "skip", Err: err})
			results = append(results, Result{Dataset: ds.ID, Artifact: ds.Artifact, Err: err})
			continue
		}
		r := runDataset(ctx, comp, set, ds, logger)
		results = append(results, r)
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}

	failed := len(errs) > 0
	term.RunFinish(!failed, time.Since(runStart))
	timer.Finish("run", int64(len(results)))
	if failed {
		diag.IncOp("pipeline", "finish", "error")
		return results, errors.Join(errs...)
	}
	diag.IncOp("pipeline", "finish", "success")
	return results, nil
}

func runDataset(ctx context.Context, comp Components, set Settings, ds contract.Dataset, logger *diag.Logger) Result {
	start := time.Now()
	res := Result{Dataset: ds.ID, Artifact: ds.Artifact}
	id := string(ds.ID)
	term := diag.GetTerminal()

	fail := func(name, stage, frameName string, err error) Result {
		code := diag.Classify(err)
		kv := map[string]string{"error": err.Error()}
		logger.ErrorWithKV(name, string(code), stage+" failed", &start, id, frameName, kv)
		diag.IncOp(name, "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError(name, string(code))
		}
		res.Err = &DatasetError{Dataset: ds.ID, Stage: stage, Err: err}
		res.Duration = time.Since(start)
		term.DatasetFinish(false, "", res.Duration)
		return res
	}

	// 枚举
	et := logger.StartWith("enumerator", "list", id, "")
	left, err := comp.Enumerator.List(ctx, ds.LeftDir)
	if err != nil {
		term.DatasetStart(id, 0)
		return fail("enumerator", "enumerate left", "", fmt.Errorf("%s: %w", ds.LeftDir, err))
	}
	right, err := comp.Enumerator.List(ctx, ds.RightDir)
	if err != nil {
		term.DatasetStart(id, 0)
		return fail("enumerator", "enumerate right", "", fmt.Errorf("%s: %w", ds.RightDir, err))
	}
	et.Finish("list", int64(len(left)+len(right)))
	diag.IncOp("enumerator", "finish", "success")

	// 配对
	pairs, err := contract.PairFrames(left, right, set.Strict)
	term.DatasetStart(id, len(pairs))
	if err != nil {
		return fail("pairing", "pair", "", err)
	}
	if len(left) != len(right) {
		logger.WarnWithKV("pairing", "frame counts differ, truncated", id, map[string]string{
			"left":  strconv.Itoa(len(left)),
			"right": strconv.Itoa(len(right)),
			"kept":  strconv.Itoa(len(pairs)),
		})
	}
	if len(pairs) == 0 {
		return fail("pairing", "pair", "", fmt.Errorf("%w: no frame pairs (left=%d right=%d)", contract.ErrEmptyInput, len(left), len(right)))
	}

	seq, err := comp.Encoder.Begin(set.FPS)
	if err != nil {
		return fail("encoder", "begin", "", err)
	}

	ft := logger.StartWith("frames", "compose", id, "")
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return fail("frames", "compose", "", err)
		}
		frameName := p.Left.Name
		logger.DebugStart("frames", "pair", id, frameName, map[string]string{
			"index": strconv.Itoa(p.Index),
			"right": p.Right.Name,
		})
		l, r, err := frame.DecodePair(p)
		if err != nil {
			return fail("decoder", "decode", frameName, err)
		}
		composite, err := comp.Stitcher.Stitch(ctx, l, r)
		if err != nil {
			return fail("stitcher", "stitch", frameName, err)
		}
		scaled, err := comp.Scaler.Scale(ctx, composite, set.Scale)
		if err != nil {
			return fail("scaler", "scale", frameName, err)
		}
		if err := seq.Add(ctx, scaled); err != nil {
			return fail("encoder", "add", frameName, err)
		}
		term.FrameProgress(p.Index+1, len(pairs))
	}
	ft.Finish("compose", int64(seq.Len()))
	diag.IncOp("frames", "finish", "success")

	nt := logger.StartWith("encoder", "finish", id, "")
	gifData, err := seq.Finish(ctx)
	if err != nil {
		return fail("encoder", "finish", "", err)
	}
	nt.Finish("finish", int64(seq.Len()))
	diag.IncOp("encoder", "finish", "success")

	wt := logger.StartWithKV("writer", "write", id, "", map[string]string{"artifact": string(ds.Artifact)})
	if err := comp.Writer.Write(ctx, ds.Artifact, gifData); err != nil {
		return fail("writer", "write", "", err)
	}
	wt.Finish("write", int64(seq.Len()))
	diag.IncOp("writer", "finish", "success")

	res.Frames = seq.Len()
	res.Duration = time.Since(start)
	term.DatasetFinish(true, string(ds.Artifact), res.Duration)
	return res
}

func sanity(comp Components, set Settings) error {
	if comp.Enumerator == nil || comp.Stitcher == nil || comp.Scaler == nil || comp.Encoder == nil || comp.Writer == nil {
		return fmt.Errorf("%w: nil component", contract.ErrInvariantViolation)
	}
	if !(set.FPS > 0) || math.IsInf(set.FPS, 0) {
		return fmt.Errorf("%w: fps %v", contract.ErrInvalidInput, set.FPS)
	}
	if !(set.Scale > 0) || math.IsInf(set.Scale, 0) {
		return fmt.Errorf("%w: scale %v", contract.ErrInvalidInput, set.Scale)
	}
	seen := make(map[contract.DatasetID]struct{}, len(set.Datasets))
	for _, ds := range set.Datasets {
		if ds.ID == "" {
			return fmt.Errorf("%w: empty dataset id", contract.ErrInvalidInput)
		}
		if ds.Artifact == "" {
			return fmt.Errorf("%w: dataset %s has no artifact", contract.ErrInvalidInput, ds.ID)
		}
		if _, dup := seen[ds.ID]; dup {
			return fmt.Errorf("%w: duplicate dataset %s", contract.ErrInvalidInput, ds.ID)
		}
		seen[ds.ID] = struct{}{}
	}
	return nil
}
