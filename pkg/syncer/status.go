package syncer

import (
	"context"
	"errors"

	"artifactsync/pkg/core"
	"artifactsync/pkg/registry"
	"artifactsync/pkg/storage"
)

// Inventory 描述 Registry 中每个 Pair 当前所在的位置
type Inventory struct {
	// Local 本地存在且校验通过
	Local registry.Registry `json:"local"`
	// Remote 远端存在 (未下载校验)
	Remote registry.Registry `json:"remote"`
	// Missing 两边都没有
	Missing registry.Registry `json:"missing"`
}

// Status 只读地检查每个 Pair，不做任何写入
// 远端查询失败的 Pair 按 "远端不存在" 处理并记录 warning
func (d *Driver) Status(ctx context.Context, reg registry.Registry) (*Inventory, error) {
	inv := &Inventory{
		Local:   make(registry.Registry),
		Remote:  make(registry.Registry),
		Missing: make(registry.Registry),
	}

	for _, p := range reg.Pairs() {
		if err := ctx.Err(); err != nil {
			return inv, err
		}

		loc := storage.Locator{Name: p.Name, Hash: p.Hash}
		local := false
		data, err := readAll(ctx, d.local, loc)
		switch {
		case err == nil:
			local = core.Verify(data, p.Hash)
			if !local {
				d.logger.Warn("local file corrupted", "pair", p.String())
			}
		case !errors.Is(err, storage.ErrNotFound):
			d.logger.Warn("failed to read local file", "pair", p.String(), "err", err)
		}

		remoteOK, err := d.remote.Exists(ctx, p.Name, p.Hash)
		if err != nil {
			d.logger.Warn("failed to check remote", "pair", p.String(), "err", err)
			remoteOK = false
		}

		if local {
			inv.Local.Add(p.Name, p.Hash)
		}
		if remoteOK {
			inv.Remote.Add(p.Name, p.Hash)
		}
		if !local && !remoteOK {
			inv.Missing.Add(p.Name, p.Hash)
		}
	}
	return inv, nil
}
