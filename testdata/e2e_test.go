package testdata

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	cfgpkg "stereogif/internal/config"
	"stereogif/internal/pipeline"
	"stereogif/pkg/contract"
)

// frameDef 描述一侧相机的帧：名称、尺寸、颜色。
type frameDef struct {
	name string
	w, h int
	c    color.RGBA
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// writeFrame 按扩展名选择编码器写出单帧。
func writeFrame(t *testing.T, dir string, fs frameDef) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f, err := os.Create(filepath.Join(dir, fs.name))
	require.NoError(t, err)
	defer f.Close()
	img := solid(fs.w, fs.h, fs.c)
	switch filepath.Ext(fs.name) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		t.Fatalf("unsupported fixture ext %s", fs.name)
	}
	require.NoError(t, err)
}

// repo 在临时目录构造 assets 布局并返回根目录。
type repo struct {
	t    *testing.T
	root string
}

func newRepo(t *testing.T) *repo { return &repo{t: t, root: t.TempDir()} }

func (r *repo) dataset(id, leftSub, rightSub string, left, right []frameDef) {
	base := filepath.Join(r.root, cfgpkg.AssetsDir, cfgpkg.FramesDir, id)
	require.NoError(r.t, os.MkdirAll(filepath.Join(base, leftSub), 0o755))
	require.NoError(r.t, os.MkdirAll(filepath.Join(base, rightSub), 0o755))
	for _, f := range left {
		writeFrame(r.t, filepath.Join(base, leftSub), f)
	}
	for _, f := range right {
		writeFrame(r.t, filepath.Join(base, rightSub), f)
	}
}

func (r *repo) gif(id string) *gif.GIF {
	f, err := os.Open(filepath.Join(r.root, cfgpkg.AssetsDir, "preprocessed_"+id+".gif"))
	require.NoError(r.t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(r.t, err)
	return g
}

func (r *repo) exists(id string) bool {
	_, err := os.Stat(filepath.Join(r.root, cfgpkg.AssetsDir, "preprocessed_"+id+".gif"))
	return err == nil
}

func (r *repo) config(ids ...string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.RepoRoot = r.root
	cfg.Datasets = cfgpkg.DatasetsFromNames(ids)
	cfg.Logging.Level = "error"
	return cfg
}

func n(count, w, h int, ext string, c color.RGBA) []frameDef {
	out := make([]frameDef, count)
	for i := range out {
		out[i] = frameDef{name: fmt.Sprintf("%d%s", i, ext), w: w, h: h, c: c}
	}
	return out
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func runPipeline(t *testing.T, cfg cfgpkg.Config) ([]pipeline.Result, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	require.NoError(t, err)
	return pipeline.Run(context.Background(), comp, set, nil)
}

// Scenario A：3 对 100×50，fps=12 → 3 帧 200×50，延时 8。
func TestScenarioA(t *testing.T) {
	r := newRepo(t)
	r.dataset("25", "ego_left/rgb", "ego_right/rgb", n(3, 100, 50, ".png", red), n(3, 100, 50, ".png", blue))

	res, err := runPipeline(t, r.config("25"))
	require.NoError(t, err)
	assert.Equal(t, 3, res[0].Frames)

	g := r.gif("25")
	require.Len(t, g.Image, 3)
	assert.Equal(t, 200, g.Config.Width)
	assert.Equal(t, 50, g.Config.Height)
	assert.Equal(t, []int{8, 8, 8}, g.Delay)
	assert.Equal(t, 0, g.LoopCount)
	for _, d := range g.Disposal {
		assert.Equal(t, byte(gif.DisposalBackground), d)
	}

	// 左半为红、右半为蓝
	rr, _, _, _ := g.Image[0].At(10, 10).RGBA()
	_, _, bb, _ := g.Image[0].At(150, 10).RGBA()
	assert.Greater(t, rr, uint32(0xf000))
	assert.Greater(t, bb, uint32(0xf000))
}

// Scenario B：同 A，scale=0.5 → 100×25。
func TestScenarioB(t *testing.T) {
	r := newRepo(t)
	r.dataset("25", "ego_left/rgb", "ego_right/rgb", n(3, 100, 50, ".png", red), n(3, 100, 50, ".png", blue))
	cfg := r.config("25")
	cfg.Scale = cfgpkg.Float64(0.5)

	_, err := runPipeline(t, cfg)
	require.NoError(t, err)
	g := r.gif("25")
	assert.Len(t, g.Image, 3)
	assert.Equal(t, 100, g.Config.Width)
	assert.Equal(t, 25, g.Config.Height)
	for _, p := range g.Image {
		assert.Equal(t, image.Rect(0, 0, 100, 25), p.Bounds())
	}
}

// Scenario C：左 2 右 3 → 严格报错；非严格 2 帧。
func TestScenarioC(t *testing.T) {
	r := newRepo(t)
	r.dataset("50", "left", "right", n(2, 10, 10, ".jpg", red), n(3, 10, 10, ".jpg", blue))

	_, err := runPipeline(t, r.config("50"))
	require.ErrorIs(t, err, contract.ErrPairMismatch)
	assert.False(t, r.exists("50"))

	cfg := r.config("50")
	off := false
	cfg.Strict = &off
	res, err := runPipeline(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res[0].Frames)
	assert.Len(t, r.gif("50").Image, 2)
}

// Scenario D：空目录 → 错误且不写出文件。
func TestScenarioD(t *testing.T) {
	r := newRepo(t)
	r.dataset("e1", "left", "right", nil, nil)
	r.dataset("e2", "left", "right", nil, n(2, 4, 4, ".png", blue))

	_, err := runPipeline(t, r.config("e1"))
	assert.ErrorIs(t, err, contract.ErrEmptyInput)
	_, err = runPipeline(t, r.config("e2"))
	assert.ErrorIs(t, err, contract.ErrPairMismatch)

	cfg := r.config("e2")
	off := false
	cfg.Strict = &off
	_, err = runPipeline(t, cfg)
	assert.ErrorIs(t, err, contract.ErrEmptyInput)
	assert.False(t, r.exists("e1"))
	assert.False(t, r.exists("e2"))
}

// 高度不一致：画布取较高者，较矮一侧区域以配置色填充。
func TestUnequalHeightsPad(t *testing.T) {
	r := newRepo(t)
	r.dataset("h", "left", "right", n(1, 10, 20, ".png", red), n(1, 10, 10, ".bmp", blue))
	cfg := r.config("h")
	cfg.Options.Stitcher = json.RawMessage(`{"height_policy":"pad","background":"#ffffff"}`)
	cfg.Options.Encoder = json.RawMessage(`{"palette":"plan9","dither":false}`)

	_, err := runPipeline(t, cfg)
	require.NoError(t, err)
	g := r.gif("h")
	assert.Equal(t, 20, g.Config.Width)
	assert.Equal(t, 20, g.Config.Height)
	rr, gg, bb, _ := g.Image[0].At(15, 15).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{rr, gg, bb})
}

// 帧按数字序配对：1,2,10 而非 1,10,2。
func TestNumericOrdering(t *testing.T) {
	r := newRepo(t)
	colors := map[string]color.RGBA{"1.png": red, "2.png": {G: 255, A: 255}, "10.png": blue}
	var left []frameDef
	for name, c := range colors {
		left = append(left, frameDef{name: name, w: 4, h: 4, c: c})
	}
	r.dataset("o", "left", "right", left, n(3, 4, 4, ".png", red))
	cfg := r.config("o")
	cfg.Options.Encoder = json.RawMessage(`{"dither":false}`)

	_, err := runPipeline(t, cfg)
	require.NoError(t, err)
	g := r.gif("o")
	require.Len(t, g.Image, 3)
	_, g2, _, _ := g.Image[1].At(1, 1).RGBA()
	_, _, b3, _ := g.Image[2].At(1, 1).RGBA()
	assert.Greater(t, g2, uint32(0xf000), "第二帧应为 2.png（绿）")
	assert.Greater(t, b3, uint32(0xf000), "第三帧应为 10.png（蓝）")
}

// 多数据集：一个缺失不影响另一个。
func TestDatasetIsolation(t *testing.T) {
	r := newRepo(t)
	r.dataset("25", "ego_left/rgb", "ego_right/rgb", n(2, 8, 8, ".png", red), n(2, 8, 8, ".png", blue))

	res, err := runPipeline(t, r.config("25", "50"))
	require.ErrorIs(t, err, contract.ErrDirMissing)
	require.Len(t, res, 2)
	assert.NoError(t, res[0].Err)
	assert.Error(t, res[1].Err)
	assert.True(t, r.exists("25"))
	assert.False(t, r.exists("50"))
}
