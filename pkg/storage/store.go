package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"

	"artifactsync/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Locator 唯一确定一个 Blob: (name, hash)
// 远端 Key 和本地路径都由它纯函数式地派生，不保存任何状态
type Locator struct {
	Name types.ArtifactName
	Hash types.Hash
}

func (l Locator) String() string { return string(l.Name) + ":" + string(l.Hash) }

// Key 返回对象存储中的 Key: <prefix>/<name>/<hash>.<ext>
// prefix 为空时省略
func (l Locator) Key(prefix, ext string) string {
	return path.Join(prefix, string(l.Name), string(l.Hash)+"."+ext)
}

// Path 返回本地文件路径: <root>/<name>/<hash>.<ext>
func (l Locator) Path(root, ext string) string {
	return filepath.Join(root, string(l.Name), string(l.Hash)+"."+ext)
}

// Store defines the interface for a blob backend.
// Implementations can be local disk, GCS, S3, or a cache decorator.
type Store interface {
	// Get 读取整个 Blob，对象不存在时返回 ErrNotFound
	Get(ctx context.Context, loc Locator) (io.ReadCloser, error)

	// Put 写入整个 Blob；单个对象的写入由后端保证原子性
	Put(ctx context.Context, loc Locator, data []byte) error

	// Has 检查对象是否存在
	Has(ctx context.Context, loc Locator) (bool, error)
}

// LocalStore 是本地同步树，额外支持删除损坏的缓存文件
type LocalStore interface {
	Store
	Delete(ctx context.Context, loc Locator) error
}
