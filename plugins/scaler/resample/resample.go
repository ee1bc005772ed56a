package resample

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"stereogif/pkg/contract"
)

// Options: 缩放器选项。
type Options struct {
	// Kernel: catmullrom（默认）| bilinear | approxbilinear | nearest。
	Kernel string `json:"kernel"`
}

var kernels = map[string]xdraw.Scaler{
	"catmullrom":     xdraw.CatmullRom,
	"bilinear":       xdraw.BiLinear,
	"approxbilinear": xdraw.ApproxBiLinear,
	"nearest":        xdraw.NearestNeighbor,
}

// Resample 以固定插值核做等比缩放。
type Resample struct {
	kernel xdraw.Scaler
}

// New 创建缩放器；未知核名返回 ErrInvalidInput。
func New(opts *Options) (*Resample, error) {
	name := "catmullrom"
	if opts != nil && strings.TrimSpace(opts.Kernel) != "" {
		name = strings.ToLower(strings.TrimSpace(opts.Kernel))
	}
	k, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: kernel %q", contract.ErrInvalidInput, name)
	}
	return &Resample{kernel: k}, nil
}

var _ contract.Scaler = (*Resample)(nil)

// Scale 按 factor 缩放；factor==1 原样返回输入。
func (r *Resample) Scale(ctx context.Context, img image.Image, factor float64) (image.Image, error) {
	if err := ValidFactor(factor); err != nil {
		return nil, err
	}
	if factor == 1 {
		return img, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), factor)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	r.kernel.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, nil
}

// ValidFactor 要求 factor 为有限正数。
func ValidFactor(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return fmt.Errorf("%w: scale factor %v", contract.ErrInvalidInput, factor)
	}
	return nil
}

// ScaledSize 返回 (round(w·s), round(h·s))，各自至少为 1。
func ScaledSize(w, h int, s float64) (int, int) {
	sw := max(1, int(math.Round(float64(w)*s)))
	sh := max(1, int(math.Round(float64(h)*s)))
	return sw, sh
}
