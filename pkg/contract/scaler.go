package contract

import (
	"context"
	"image"
)

// Scaler: 对合成帧做等比缩放。
// 约束：
//  1. factor==1 时原样返回输入（不重采样）；
//  2. 输出尺寸为 round(W·factor)×round(H·factor)，最小 1 像素；
//  3. factor<=0/NaN/Inf 返回 ErrInvalidInput。
type Scaler interface {
	Scale(ctx context.Context, img image.Image, factor float64) (image.Image, error)
}
