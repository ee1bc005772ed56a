package gif

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	stdgif "image/gif"
	"io"
	"math"
	"strings"

	"stereogif/pkg/contract"
)

// Options: GIF 编码器选项。
type Options struct {
	// Palette: plan9（默认，256 色）| websafe（216 色）。
	Palette string `json:"palette"`
	// Dither: 是否使用 Floyd–Steinberg 抖动。默认 true。
	Dither *bool `json:"dither,omitempty"`
}

// Encoder 生成无限循环、等间隔的 GIF。
type Encoder struct {
	pal    color.Palette
	dither bool
}

// New 创建 GIF 编码器。
func New(opts *Options) (*Encoder, error) {
	e := &Encoder{pal: palette.Plan9, dither: true}
	if opts == nil {
		return e, nil
	}
	switch strings.ToLower(strings.TrimSpace(opts.Palette)) {
	case "", "plan9":
	case "websafe":
		e.pal = palette.WebSafe
	default:
		return nil, fmt.Errorf("%w: palette %q", contract.ErrInvalidInput, opts.Palette)
	}
	if opts.Dither != nil {
		e.dither = *opts.Dither
	}
	return e, nil
}

var _ contract.Encoder = (*Encoder)(nil)

// DelayCentiseconds 将帧率换算为 GIF 帧延时（1/100 秒），四舍五入且至少为 1。
func DelayCentiseconds(fps float64) (int, error) {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return 0, fmt.Errorf("%w: fps %v", contract.ErrInvalidInput, fps)
	}
	return max(1, int(math.Round(100/fps))), nil
}

// Begin 开启一个新序列。
func (e *Encoder) Begin(fps float64) (contract.Sequence, error) {
	d, err := DelayCentiseconds(fps)
	if err != nil {
		return nil, err
	}
	return &sequence{enc: e, delay: d}, nil
}

type sequence struct {
	enc      *Encoder
	delay    int
	frames   []*image.Paletted
	n        int // 已加入帧数，Finish 后保持不变
	w, h     int
	finished bool
}

// Add 立即量化并保存调色板帧，原始 RGBA 帧可随即释放。
func (s *sequence) Add(ctx context.Context, img image.Image) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if s.finished {
		return fmt.Errorf("%w: add after finish", contract.ErrInvariantViolation)
	}
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: zero-sized frame", contract.ErrInvalidInput)
	}
	s.frames = append(s.frames, s.enc.quantize(img))
	s.n++
	s.w = max(s.w, b.Dx())
	s.h = max(s.h, b.Dy())
	return nil
}

func (s *sequence) Len() int { return s.n }

// Finish 编码全部帧；空序列返回 ErrEmptyInput。
func (s *sequence) Finish(ctx context.Context) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if s.finished {
		return nil, fmt.Errorf("%w: finish twice", contract.ErrInvariantViolation)
	}
	s.finished = true
	if len(s.frames) == 0 {
		return nil, contract.ErrEmptyInput
	}
	g := &stdgif.GIF{
		Image:     s.frames,
		Delay:     make([]int, len(s.frames)),
		Disposal:  make([]byte, len(s.frames)),
		LoopCount: 0,
		Config:    image.Config{ColorModel: s.enc.pal, Width: s.w, Height: s.h},
	}
	for i := range s.frames {
		g.Delay[i] = s.delay
		g.Disposal[i] = stdgif.DisposalBackground
	}
	var buf bytes.Buffer
	if err := stdgif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("gif encode: %w", err)
	}
	s.frames = nil
	return &buf, nil
}

// quantize 将任意图像映射到固定调色板，输出原点归零。
func (e *Encoder) quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), e.pal)
	if e.dither {
		draw.FloydSteinberg.Draw(p, p.Bounds(), img, b.Min)
	} else {
		draw.Draw(p, p.Bounds(), img, b.Min, draw.Src)
	}
	return p
}
