// Package remote 是面向 (name, hash) 的 Blob Store Client。
//
// 它在 storage.Store 之上补充两条规则：发布前必须通过完整性校验，
// 以及所有存储层失败统一包装为 *TransferError。这里不做重试。
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"artifactsync/pkg/core"
	"artifactsync/pkg/storage"
	"artifactsync/pkg/types"
)

// ErrTransfer 所有 TransferError 都满足 errors.Is(err, ErrTransfer)
var ErrTransfer = errors.New("transfer error")

// TransferError 携带操作、对象和底层诊断信息，不区分具体原因
type TransferError struct {
	Op      string
	Locator storage.Locator
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// Client 包装一个远端 Store
type Client struct {
	store storage.Store
}

func New(store storage.Store) *Client {
	return &Client{store: store}
}

// Fetch 读取整个 Blob
func (c *Client) Fetch(ctx context.Context, name types.ArtifactName, hash types.Hash) ([]byte, error) {
	loc := storage.Locator{Name: name, Hash: hash}

	r, err := c.store.Get(ctx, loc)
	if err != nil {
		return nil, &TransferError{Op: "fetch", Locator: loc, Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransferError{Op: "fetch", Locator: loc, Err: err}
	}
	return data, nil
}

// Publish 先校验再上传，拒绝发布内容与声明 Hash 不一致的对象
// 校验失败直接返回 *core.HashMismatchError，不产生任何网络请求
func (c *Client) Publish(ctx context.Context, name types.ArtifactName, hash types.Hash, data []byte) error {
	if err := core.VerifyOrFail(data, hash); err != nil {
		return err
	}

	loc := storage.Locator{Name: name, Hash: hash}
	if err := c.store.Put(ctx, loc, data); err != nil {
		return &TransferError{Op: "publish", Locator: loc, Err: err}
	}
	return nil
}

// Exists 检查远端是否已有该对象
func (c *Client) Exists(ctx context.Context, name types.ArtifactName, hash types.Hash) (bool, error) {
	loc := storage.Locator{Name: name, Hash: hash}
	ok, err := c.store.Has(ctx, loc)
	if err != nil {
		return false, &TransferError{Op: "exists", Locator: loc, Err: err}
	}
	return ok, nil
}
