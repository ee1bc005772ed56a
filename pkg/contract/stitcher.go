package contract

import (
	"context"
	"image"
)

// Stitcher: 将一对帧横向拼接为一帧合成图。
// 约束：
//  1. 左帧位于 x=0，右帧位于 x=left.W，均顶端对齐；
//  2. 纯计算，不做 I/O；
//  3. 同一次运行内的填充色保持一致。
type Stitcher interface {
	Stitch(ctx context.Context, left, right image.Image) (*image.RGBA, error)
}
