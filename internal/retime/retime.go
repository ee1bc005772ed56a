// Package retime 按时间轴对已有 GIF 抽帧，转换到更低的目标帧率。
//
// 每帧时长取 GIF 延迟（厘秒×10 毫秒），缺失或非正值按 33ms 计；
// 以 1/dstFPS 为步长在累计时间轴上采样，取覆盖采样时刻的帧，并合并相邻重复。
package retime

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"stereogif/pkg/contract"
)

// DefaultFrameMS: 延迟缺失时的帧时长（约 30fps）。
const DefaultFrameMS = 33

// errStop: 已取得最后一个采样帧，提前结束合成。
var errStop = errors.New("retime: stop")

// Stats 记录一次转换的帧数变化。
type Stats struct {
	SrcFrames int
	DstFrames int
	// TotalMS: 源时间轴总时长（毫秒）。
	TotalMS int
}

// Durations 返回每帧时长（毫秒）。
func Durations(g *gif.GIF) []int {
	out := make([]int, len(g.Image))
	for i := range g.Image {
		d := 0
		if i < len(g.Delay) {
			d = g.Delay[i] * 10
		}
		if d <= 0 {
			d = DefaultFrameMS
		}
		out[i] = d
	}
	return out
}

// SampleIndices 在累计时间轴上按 1/dstFPS 步长采样帧索引。
// 空时间轴返回 [0]；相邻重复索引被合并。
func SampleIndices(durations []int, dstFPS float64) ([]int, error) {
	if !(dstFPS > 0) || math.IsInf(dstFPS, 0) {
		return nil, fmt.Errorf("%w: dst fps %v", contract.ErrInvalidInput, dstFPS)
	}
	if len(durations) == 0 {
		return []int{0}, nil
	}
	ds := make([]float64, len(durations))
	for i, d := range durations {
		ds[i] = float64(d)
	}
	ends := floats.CumSum(make([]float64, len(ds)), ds)
	total := ends[len(ends)-1]
	if total <= 0 {
		return []int{0}, nil
	}

	step := 1000.0 / dstFPS
	var out []int
	i := 0
	for k := 0; ; k++ {
		t := float64(k) * step
		if t >= total {
			break
		}
		for i < len(ends) && ends[i] <= t {
			i++
		}
		if i >= len(ends) {
			break
		}
		if len(out) == 0 || out[len(out)-1] != i {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = []int{0}
	}
	return out, nil
}

// Frames 将每帧合成到逻辑画布上（遵循 disposal），返回完整画面序列。
func Frames(g *gif.GIF) []*image.RGBA {
	out := make([]*image.RGBA, 0, len(g.Image))
	_ = composite(g, func(_ int, img *image.RGBA) error {
		out = append(out, img)
		return nil
	})
	return out
}

// composite 依次合成各帧；yield 收到的图像为独立拷贝。
func composite(g *gif.GIF, yield func(i int, img *image.RGBA) error) error {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, p := range g.Image {
			bounds = bounds.Union(p.Bounds())
		}
	}
	canvas := image.NewRGBA(bounds)
	for i, p := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var saved *image.RGBA
		if disposal == gif.DisposalPrevious {
			saved = clone(canvas)
		}
		xdraw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, xdraw.Over)
		if err := yield(i, clone(canvas)); err != nil {
			return err
		}
		switch disposal {
		case gif.DisposalBackground:
			xdraw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return nil
}

func clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// Convert 解码 r 中的 GIF，按 dstFPS 抽帧后经 enc 重新编码。
func Convert(ctx context.Context, r io.Reader, dstFPS float64, enc contract.Encoder) (io.Reader, Stats, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", contract.ErrDecode, err)
	}
	if len(g.Image) == 0 {
		return nil, Stats{}, fmt.Errorf("%w: gif has no frames", contract.ErrEmptyInput)
	}
	durs := Durations(g)
	idx, err := SampleIndices(durs, dstFPS)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{SrcFrames: len(g.Image), DstFrames: len(idx)}
	for _, d := range durs {
		st.TotalMS += d
	}

	seq, err := enc.Begin(dstFPS)
	if err != nil {
		return nil, st, err
	}
	want := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		want[i] = struct{}{}
	}
	last := idx[len(idx)-1]
	err = composite(g, func(i int, img *image.RGBA) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := want[i]; ok {
			if err := seq.Add(ctx, img); err != nil {
				return err
			}
		}
		if i >= last {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, st, err
	}
	out, err := seq.Finish(ctx)
	if err != nil {
		return nil, st, err
	}
	return out, st, nil
}

// DefaultOutputPath: <dir>/<stem>_<int(fps)>fps<ext>。
func DefaultOutputPath(input string, dstFPS float64) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(filepath.Dir(input), stem+"_"+strconv.Itoa(int(dstFPS))+"fps"+ext)
}
