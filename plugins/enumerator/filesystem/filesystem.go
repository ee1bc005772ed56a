package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"stereogif/pkg/contract"
)

// Options 为文件系统枚举器的可选配置。
type Options struct {
	// AllowExts: 允许的扩展名（含点，大小写不敏感）。为空时使用默认集合。
	AllowExts []string `json:"allow_exts"`
	// FollowSymlinks: 是否接受指向常规文件的符号链接。默认 true。
	FollowSymlinks *bool `json:"follow_symlinks,omitempty"`
}

// DefaultExts: 默认允许的帧文件扩展名。
var DefaultExts = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// FileSystem 按目录枚举帧文件。
type FileSystem struct {
	exts    map[string]struct{}
	symlink bool
}

// New 创建文件系统枚举器。
func New(opts *Options) *FileSystem {
	list := DefaultExts
	if opts != nil && len(opts.AllowExts) > 0 {
		list = opts.AllowExts
	}
	ex := make(map[string]struct{}, len(list))
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		ex[e] = struct{}{}
	}
	follow := true
	if opts != nil && opts.FollowSymlinks != nil {
		follow = *opts.FollowSymlinks
	}
	return &FileSystem{exts: ex, symlink: follow}
}

var _ contract.Enumerator = (*FileSystem)(nil)

// List 返回 dir 下的帧文件（不递归），按捕获顺序排序。
// 全部文件名主干为非负整数时按数值排序（2 在 10 之前），否则按文件名字典序。
func (e *FileSystem) List(ctx context.Context, dir string) ([]contract.FrameRef, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", contract.ErrDirMissing, dir)
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", contract.ErrDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]contract.FrameRef, 0, len(entries))
	for _, ent := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if ent.IsDir() {
			continue
		}
		if _, ok := e.exts[strings.ToLower(filepath.Ext(ent.Name()))]; !ok {
			continue
		}
		p := filepath.Join(dir, ent.Name())
		ok, err := e.isFrameFile(ent, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, contract.FrameRef{Path: p, Name: ent.Name()})
	}
	SortFrames(out)
	return out, nil
}

// isFrameFile: 常规文件，或（允许时）指向常规文件的符号链接。
func (e *FileSystem) isFrameFile(ent os.DirEntry, p string) (bool, error) {
	if ent.Type()&os.ModeSymlink != 0 {
		if !e.symlink {
			return false, nil
		}
		t, err := os.Stat(p)
		if err != nil {
			// 悬空链接：忽略
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		return t.Mode().IsRegular(), nil
	}
	return ent.Type().IsRegular(), nil
}

// SortFrames 原地排序帧引用，规则见 List。
func SortFrames(refs []contract.FrameRef) {
	nums := make([]uint64, len(refs))
	numeric := true
	for i, r := range refs {
		n, err := strconv.ParseUint(stem(r.Name), 10, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = n
	}
	if !numeric {
		sort.SliceStable(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
		return
	}
	idx := make([]int, len(refs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if nums[i] != nums[j] {
			return nums[i] < nums[j]
		}
		return refs[i].Name < refs[j].Name
	})
	sorted := make([]contract.FrameRef, len(refs))
	for k, i := range idx {
		sorted[k] = refs[i]
	}
	copy(refs, sorted)
}

func stem(name string) string { return strings.TrimSuffix(name, filepath.Ext(name)) }
