// Package syncer 把本地目录树和远端 Blob Store 按 Registry 对齐。
//
// 每个 (name, hash) 独立处理，互不共享可变状态；默认严格串行。
// 并发度大于 1 时每个 worker 只写自己的 Outcome 槽位，结果在 Wait 之后统一聚合，
// 输出顺序始终是 name、hash 升序。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"artifactsync/pkg/core"
	"artifactsync/pkg/registry"
	"artifactsync/pkg/remote"
	"artifactsync/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Driver 编排 download / upload
type Driver struct {
	local       storage.LocalStore
	remote      *remote.Client
	recorder    Recorder
	concurrency int
	logger      *slog.Logger
}

// Option 配置 Driver
type Option func(*Driver)

// WithConcurrency 设置并发处理的 Pair 数，<= 1 表示串行
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRecorder 在每次运行结束后记录报告
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithLogger 替换默认 logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

func New(local storage.LocalStore, rc *remote.Client, opts ...Option) *Driver {
	d := &Driver{
		local:       local,
		remote:      rc,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// =============================================================================
// Download
// =============================================================================

// Download 对 Registry 中的每个 Pair 执行:
// CheckLocal -> {Cached | Fetch} -> Verify -> {Done | Corrupt}
//
// Strict 模式下第一个失败终止运行，返回已有的部分报告和错误；
// Partial 模式下失败被记录为 warning，Pair 不进入 Result。
func (d *Driver) Download(ctx context.Context, reg registry.Registry, mode FailureMode) (*Report, error) {
	report := d.newReport(DirDownload, mode, reg)

	err := d.forEach(ctx, reg.Pairs(), mode == Strict, func(ctx context.Context, p registry.Pair) Outcome {
		out := d.downloadOne(ctx, p)
		if markCanceled(ctx, &out) {
			d.logger.Debug("download canceled", "pair", p.String(), "err", out.Err)
			return out
		}
		if out.Err != nil {
			if mode == Partial {
				d.logger.Warn("failed to download", "pair", p.String(), "err", out.Err)
			} else {
				d.logger.Error("failed to download", "pair", p.String(), "err", out.Err)
			}
		}
		return out
	}, report)

	d.finish(ctx, report)
	return report, err
}

func (d *Driver) downloadOne(ctx context.Context, p registry.Pair) Outcome {
	loc := storage.Locator{Name: p.Name, Hash: p.Hash}
	fail := func(err error) Outcome { return Outcome{Pair: p, Status: StatusFailed, Err: err} }

	// 1. CheckLocal
	data, err := readAll(ctx, d.local, loc)
	switch {
	case err == nil:
		// 缓存每次都重新校验，不信任上一次运行的结果
		if core.Verify(data, p.Hash) {
			d.logger.Info("already exists, skipping", "pair", p.String())
			return Outcome{Pair: p, Status: StatusCached}
		}
		d.logger.Error("exists corrupted, removing", "pair", p.String())
		if err := d.local.Delete(ctx, loc); err != nil {
			return fail(fmt.Errorf("failed to remove corrupted file: %w", err))
		}
	case errors.Is(err, storage.ErrNotFound):
		// 走 Fetch
	default:
		return fail(fmt.Errorf("failed to read local file: %w", err))
	}

	// 2. Fetch
	data, err = d.remote.Fetch(ctx, p.Name, p.Hash)
	if err != nil {
		return fail(err)
	}

	// 3. Verify: 不一致的内容永远不会落盘
	if err := core.VerifyOrFail(data, p.Hash); err != nil {
		return fail(err)
	}

	// 4. Done: 原子写入 (父目录按需创建)
	if err := d.local.Put(ctx, loc, data); err != nil {
		return fail(fmt.Errorf("failed to write local file: %w", err))
	}

	d.logger.Debug("downloaded", "pair", p.String(), "bytes", len(data))
	return Outcome{Pair: p, Status: StatusDownloaded}
}

// =============================================================================
// Upload
// =============================================================================

// UploadOptions 控制 upload 的可选行为
type UploadOptions struct {
	// SkipExisting 为 true 时先检查远端，已存在的对象不重复发布
	SkipExisting bool
}

// Upload 对每个 Pair 执行 ReadLocal -> Verify -> Publish
// 始终是 best-effort：任何单个失败只记录 warning，不终止运行
// 返回的 error 只可能来自 ctx 取消
func (d *Driver) Upload(ctx context.Context, reg registry.Registry, opts UploadOptions) (*Report, error) {
	report := d.newReport(DirUpload, Partial, reg)

	_ = d.forEach(ctx, reg.Pairs(), false, func(ctx context.Context, p registry.Pair) Outcome {
		out := d.uploadOne(ctx, p, opts)
		if markCanceled(ctx, &out) {
			d.logger.Debug("upload canceled", "pair", p.String(), "err", out.Err)
			return out
		}
		if out.Err != nil {
			d.logger.Warn("failed to upload", "pair", p.String(), "err", out.Err)
		}
		return out
	}, report)

	d.finish(ctx, report)
	return report, ctx.Err()
}

func (d *Driver) uploadOne(ctx context.Context, p registry.Pair, opts UploadOptions) Outcome {
	loc := storage.Locator{Name: p.Name, Hash: p.Hash}
	fail := func(err error) Outcome { return Outcome{Pair: p, Status: StatusFailed, Err: err} }

	d.logger.Info("trying", "pair", p.String())

	if opts.SkipExisting {
		exists, err := d.remote.Exists(ctx, p.Name, p.Hash)
		if err != nil {
			d.logger.Debug("existence check failed, publishing anyway", "pair", p.String(), "err", err)
		} else if exists {
			d.logger.Info("already published, skipping", "pair", p.String())
			return Outcome{Pair: p, Status: StatusSkipped}
		}
	}

	// 1. ReadLocal
	data, err := readAll(ctx, d.local, loc)
	if err != nil {
		return fail(fmt.Errorf("failed to read local file: %w", err))
	}

	// 2. Verify + 3. Publish (Publish 内部先 VerifyOrFail)
	if err := d.remote.Publish(ctx, p.Name, p.Hash, data); err != nil {
		return fail(err)
	}
	return Outcome{Pair: p, Status: StatusUploaded}
}

// =============================================================================
// 公共流程
// =============================================================================

// forEach 按顺序 (或有限并发) 处理所有 Pair，并把结果按输入顺序写回 report
// stopOnFailure 为 true 时，第一个失败会取消尚未开始的 Pair 并作为返回值
func (d *Driver) forEach(
	ctx context.Context,
	pairs []registry.Pair,
	stopOnFailure bool,
	fn func(context.Context, registry.Pair) Outcome,
	report *Report,
) error {
	outcomes := make([]Outcome, len(pairs))
	var runErr error

	if d.concurrency <= 1 {
		for i, p := range pairs {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			outcomes[i] = fn(ctx, p)
			if outcomes[i].Status == StatusCanceled {
				runErr = ctx.Err()
				break
			}
			if stopOnFailure && outcomes[i].Status == StatusFailed {
				runErr = fmt.Errorf("failed to %s %s: %w", report.Direction, p, outcomes[i].Err)
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency)
		for i, p := range pairs {
			g.Go(func() error {
				// 已经有 Pair 失败 (Strict) 或外部取消，不再开始新的 Pair
				if gctx.Err() != nil {
					return nil
				}
				outcomes[i] = fn(gctx, p)
				// 被兄弟 Pair 的失败取消的不算失败，错误由第一个失败者返回
				if stopOnFailure && outcomes[i].Status == StatusFailed {
					return fmt.Errorf("failed to %s %s: %w", report.Direction, p, outcomes[i].Err)
				}
				return nil
			})
		}
		runErr = g.Wait()
		if runErr == nil {
			runErr = ctx.Err()
		}
	}

	// 聚合：只保留真正处理过的 Pair，顺序与输入一致
	for _, o := range outcomes {
		if o.Status == "" {
			continue
		}
		report.Outcomes = append(report.Outcomes, o)
		if o.OK() {
			report.Result.Add(o.Pair.Name, o.Pair.Hash)
		}
	}
	return runErr
}

func (d *Driver) newReport(dir Direction, mode FailureMode, reg registry.Registry) *Report {
	digest, err := reg.Fingerprint()
	if err != nil {
		d.logger.Debug("failed to fingerprint registry", "err", err)
	}
	d.logger.Debug("sync started", "direction", string(dir), "mode", mode.String(),
		"pairs", reg.Len(), "registry", digest.Short())

	return &Report{
		Direction: dir,
		Mode:      mode,
		Digest:    digest,
		Result:    make(registry.Registry),
		StartedAt: time.Now(),
	}
}

func (d *Driver) finish(ctx context.Context, report *Report) {
	report.FinishedAt = time.Now()
	d.logger.Info("sync finished",
		"direction", string(report.Direction),
		"succeeded", report.Succeeded(),
		"failed", len(report.Failed()),
		"canceled", report.Count(StatusCanceled),
		"dur", report.FinishedAt.Sub(report.StartedAt))

	if d.recorder == nil {
		return
	}
	// journal 写入失败只是警告，不影响同步结果
	if err := d.recorder.Record(context.WithoutCancel(ctx), report); err != nil {
		d.logger.Warn("failed to record run", "err", err)
	}
}

// markCanceled 把因 ctx 取消而中断的 Outcome 标记为 StatusCanceled
func markCanceled(ctx context.Context, out *Outcome) bool {
	if out.Err == nil || ctx.Err() == nil || !errors.Is(out.Err, context.Canceled) {
		return false
	}
	out.Status = StatusCanceled
	return true
}

func readAll(ctx context.Context, s storage.Store, loc storage.Locator) ([]byte, error) {
	r, err := s.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
