package contract

// DatasetID: 数据集名称（例如 "25"、"50"），同时用于派生输出工件名。
type DatasetID string

// Dataset: 一组左右相机帧目录及其输出工件。
// 约束：
// - LeftDir/RightDir 为已解析的目录路径（布局推断在配置层完成）；
// - Artifact 为交给 Writer 的工件标识（通常为 preprocessed_<id>.gif）。
type Dataset struct {
	ID       DatasetID
	LeftDir  string
	RightDir string
	Artifact ArtifactID
}

// FrameRef: 单帧文件引用（未解码）。
type FrameRef struct {
	// Path: 可直接打开的文件路径。
	Path string
	// Name: 文件基名，用于日志与错误信息。
	Name string
}

// FramePair: 按索引对齐的一对左右帧。
// Index 自 0 严格递增、无空洞。
type FramePair struct {
	Index int
	Left  FrameRef
	Right FrameRef
}
