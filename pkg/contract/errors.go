package contract

import "errors"

// 最小错误分类（哨兵），上层以 errors.Is 判定。
var (
	// ErrDirMissing: 帧目录不存在或不是目录（配置错误，对该数据集致命）。
	ErrDirMissing = errors.New("directory missing")
	// ErrPairMismatch: 严格模式下左右帧数量不一致。
	ErrPairMismatch = errors.New("left/right frame count mismatch")
	// ErrDecode: 单帧文件无法读取或解码。
	ErrDecode = errors.New("frame decode failed")
	// ErrEmptyInput: 没有任何可编码的帧。
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidInput: 参数越界（fps/scale<=0、零尺寸图像等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 工件标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
