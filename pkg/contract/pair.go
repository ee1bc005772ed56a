package contract

import "fmt"

// PairFrames 按索引将左右帧列表对齐为 FramePair 序列。
// 规则：
// - strict=true：数量不一致返回 ErrPairMismatch（附两侧数量）；
// - strict=false：截断到较短一侧；
// - 两侧皆空返回空结果，由编码阶段决定空输入语义。
func PairFrames(left, right []FrameRef, strict bool) ([]FramePair, error) {
	if strict && len(left) != len(right) {
		return nil, fmt.Errorf("%w: left=%d right=%d", ErrPairMismatch, len(left), len(right))
	}
	n := min(len(left), len(right))
	pairs := make([]FramePair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, FramePair{Index: i, Left: left[i], Right: right[i]})
	}
	return pairs, nil
}
