// Package frame 负责单帧文件的打开与解码。
//
// 标准库注册 PNG/JPEG/GIF；BMP/TIFF/WebP 由 golang.org/x/image 注册。
package frame

import (
	"bufio"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"stereogif/pkg/contract"
)

// Decode 打开并解码 path 指向的帧。
// 打开或解码失败均包裹 contract.ErrDecode 并带上文件路径。
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", contract.ErrDecode, path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", contract.ErrDecode, path, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s: zero-sized image", contract.ErrDecode, path)
	}
	return img, nil
}

// DecodePair 依次解码一对帧，任一失败即返回。
func DecodePair(p contract.FramePair) (left, right image.Image, err error) {
	if left, err = Decode(p.Left.Path); err != nil {
		return nil, nil, err
	}
	if right, err = Decode(p.Right.Path); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}
