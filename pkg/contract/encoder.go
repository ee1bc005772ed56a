package contract

import (
	"context"
	"image"
	"io"
)

// Encoder: 动图编码器工厂。Begin 以给定帧率开启一个新序列。
type Encoder interface {
	Begin(fps float64) (Sequence, error)
}

// Sequence: 单个工件的有序帧序列。
// 约束：
//  1. Add 按调用顺序追加，不重排、不丢帧；
//  2. 每帧延时一致，由 Begin 的帧率决定；
//  3. Finish 在空序列上返回 ErrEmptyInput；
//  4. Finish 之后不可再 Add；
//  5. Len 为已加入的帧数，Finish 之后保持不变。
type Sequence interface {
	Add(ctx context.Context, img image.Image) error
	Len() int
	Finish(ctx context.Context) (io.Reader, error)
}
