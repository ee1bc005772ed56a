package contract

import "context"

// Enumerator: 帧目录枚举抽象。
// 约束：
// 1) 目录缺失返回 ErrDirMissing（包裹路径）；
// 2) 空目录返回空切片、无错误；
// 3) 返回顺序确定且与捕获顺序一致（实现决定排序规则）；
// 4) 不解码、不在内部起并发。
type Enumerator interface {
	List(ctx context.Context, dir string) ([]FrameRef, error)
}
