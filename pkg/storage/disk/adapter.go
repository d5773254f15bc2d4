package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"artifactsync/pkg/storage"
	"artifactsync/pkg/types"
)

var _ storage.LocalStore = (*Adapter)(nil)

// Adapter 实现了 storage.LocalStore 接口
// 布局: <root>/<prefix>/<name>/<hash>.<ext>
// 既用作本地同步树，也可以作为 "disk" 类型的远端 (例如挂载的共享目录)
type Adapter struct {
	rootPath string
	ext      string
}

// Option 配置 Adapter
type Option func(*Adapter)

// WithExt 设置归档后缀 (默认 tar)
func WithExt(ext string) Option {
	return func(a *Adapter) {
		if ext != "" {
			a.ext = ext
		}
	}
}

// WithPrefix 在 root 下再加一层命名空间目录
func WithPrefix(prefix string) Option {
	return func(a *Adapter) { a.rootPath = filepath.Join(a.rootPath, filepath.FromSlash(prefix)) }
}

// NewAdapter 创建一个新的磁盘存储适配器
// 不会主动创建 root，目录在第一次 Put 时按需创建
func NewAdapter(root string, opts ...Option) *Adapter {
	a := &Adapter{rootPath: root, ext: types.DefaultArchiveExt}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Root 返回实际的根目录 (含 prefix)
func (s *Adapter) Root() string { return s.rootPath }

// layout 返回 Locator 对应的物理路径
func (s *Adapter) layout(loc storage.Locator) string {
	return loc.Path(s.rootPath, s.ext)
}

// Put 原子写入: 先写临时文件再 Rename
// 读者要么看不到文件，要么看到完整的文件
func (s *Adapter) Put(ctx context.Context, loc storage.Locator, data []byte) error {
	targetPath := s.layout(loc)

	// 1. 准备目录；MkdirAll 对已存在的目录是幂等的，并发创建同一父目录也安全
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}

	// 2. 临时文件必须和目标在同一目录，Rename 才是原子的
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	// 成功 Rename 后这个删除是无害的
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// 3. 移动到最终位置
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return err
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(loc))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, loc storage.Locator) (bool, error) {
	info, err := os.Stat(s.layout(loc))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete 删除文件，文件不存在不算错误
func (s *Adapter) Delete(ctx context.Context, loc storage.Locator) error {
	err := os.Remove(s.layout(loc))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
