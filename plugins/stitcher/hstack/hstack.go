package hstack

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	"stereogif/pkg/contract"
)

// 高度策略
const (
	// PolicyPad: 画布高度取两者最大值，较矮一侧顶端对齐，其余区域填充背景色。
	PolicyPad = "pad"
	// PolicyFit: 将较高一侧等比缩放到较矮一侧的高度，画布高度取最小值。
	PolicyFit = "fit"
)

// Options: 拼接器选项。
type Options struct {
	// HeightPolicy: "pad"（默认）或 "fit"。
	HeightPolicy string `json:"height_policy"`
	// Background: 填充色，#RRGGBB 或 #RRGGBBAA；默认不透明黑。
	Background string `json:"background"`
}

// HStack 横向拼接左右帧。
type HStack struct {
	policy string
	bg     color.RGBA
}

// New 创建拼接器；选项非法时返回 ErrInvalidInput。
func New(opts *Options) (*HStack, error) {
	h := &HStack{policy: PolicyPad, bg: color.RGBA{A: 0xff}}
	if opts == nil {
		return h, nil
	}
	switch p := strings.ToLower(strings.TrimSpace(opts.HeightPolicy)); p {
	case "", PolicyPad:
	case PolicyFit:
		h.policy = PolicyFit
	default:
		return nil, fmt.Errorf("%w: height_policy %q", contract.ErrInvalidInput, opts.HeightPolicy)
	}
	if s := strings.TrimSpace(opts.Background); s != "" {
		c, err := ParseHexColor(s)
		if err != nil {
			return nil, err
		}
		h.bg = c
	}
	return h, nil
}

var _ contract.Stitcher = (*HStack)(nil)

// Stitch 生成合成帧：左帧位于 x=0，右帧位于 x=left.W，均顶端对齐。
func (h *HStack) Stitch(ctx context.Context, left, right image.Image) (*image.RGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: nil frame", contract.ErrInvalidInput)
	}
	lb, rb := left.Bounds(), right.Bounds()
	if lb.Empty() || rb.Empty() {
		return nil, fmt.Errorf("%w: zero-sized frame", contract.ErrInvalidInput)
	}

	if h.policy == PolicyFit && lb.Dy() != rb.Dy() {
		target := min(lb.Dy(), rb.Dy())
		left = fitHeight(left, target)
		right = fitHeight(right, target)
		lb, rb = left.Bounds(), right.Bounds()
	}

	w := lb.Dx() + rb.Dx()
	ht := max(lb.Dy(), rb.Dy())
	canvas := image.NewRGBA(image.Rect(0, 0, w, ht))
	if lb.Dy() != rb.Dy() {
		xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(h.bg), image.Point{}, xdraw.Src)
	}
	xdraw.Draw(canvas, image.Rect(0, 0, lb.Dx(), lb.Dy()), left, lb.Min, xdraw.Src)
	xdraw.Draw(canvas, image.Rect(lb.Dx(), 0, w, rb.Dy()), right, rb.Min, xdraw.Src)
	return canvas, nil
}

// fitHeight 将图像等比缩放到目标高度；已满足时原样返回。
func fitHeight(img image.Image, target int) image.Image {
	b := img.Bounds()
	if b.Dy() == target {
		return img
	}
	w := max(1, int(math.Round(float64(b.Dx())*float64(target)/float64(b.Dy()))))
	dst := image.NewRGBA(image.Rect(0, 0, w, target))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// ParseHexColor 解析 #RRGGBB / #RRGGBBAA（# 可省略）。
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("%w: color %q", contract.ErrInvalidInput, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q", contract.ErrInvalidInput, s)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(c).(color.RGBA), nil
}
