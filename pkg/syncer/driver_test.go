package syncer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artifactsync/pkg/core"
	"artifactsync/pkg/remote"
	"artifactsync/pkg/storage"
	"artifactsync/pkg/storage/disk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Download
// -----------------------------------------------------------------------------

func TestDownload_FetchesAndWrites(t *testing.T) {
	e := newEnv(t)
	a, b := newBlob("py", "python runner"), newBlob("wasm", "wasm runner")
	e.seedRemote(t, a, b)
	reg := registryOf(a, b)

	report, err := e.driver.Download(context.Background(), reg, Strict)
	require.NoError(t, err)

	assert.True(t, report.Result.Equal(reg))
	assert.Equal(t, 2, report.Count(StatusDownloaded))
	assert.Empty(t, report.Failed())
	assert.Equal(t, int32(2), e.remote.gets())
	assert.True(t, report.Digest.IsValid())

	for _, bl := range []blob{a, b} {
		data, err := os.ReadFile(filepath.Join(e.root, string(bl.name), string(bl.hash)+".tar"))
		require.NoError(t, err)
		assert.Equal(t, bl.data, data)
	}
}

func TestDownload_IdempotentWithoutNetwork(t *testing.T) {
	e := newEnv(t)
	a, b := newBlob("py", "one"), newBlob("py", "two")
	e.seedRemote(t, a, b)
	reg := registryOf(a, b)

	first, err := e.driver.Download(context.Background(), reg, Strict)
	require.NoError(t, err)
	fetches := e.remote.gets()

	// 第二次运行时网络不可达
	e.remote.setOffline(true)

	second, err := e.driver.Download(context.Background(), reg, Strict)
	require.NoError(t, err)

	assert.Equal(t, fetches, e.remote.gets(), "完全同步的目录不应发生任何 fetch")
	assert.Equal(t, 2, second.Count(StatusCached))
	assert.True(t, first.Result.Equal(second.Result))
	assert.Equal(t, 2, strings.Count(e.logs.String(), "already exists, skipping"))
}

func TestDownload_EmptyRegistry(t *testing.T) {
	e := newEnv(t)
	report, err := e.driver.Download(context.Background(), registryOf(), Strict)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Result.Len())
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, int32(0), e.remote.gets())
}

func TestDownload_ReplacesCorruptedCache(t *testing.T) {
	e := newEnv(t)
	a := newBlob("py", "good bytes")
	e.seedRemote(t, a)
	e.seedLocal(t, a, []byte("bit rot"))

	report, err := e.driver.Download(context.Background(), registryOf(a), Strict)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(StatusDownloaded))
	assert.Contains(t, e.logs.String(), "exists corrupted, removing")
	assert.Equal(t, int32(1), e.remote.gets())

	data, err := os.ReadFile(a.loc().Path(e.root, "tar"))
	require.NoError(t, err)
	assert.Equal(t, a.data, data)
}

func TestDownload_RemoteCorruptNeverWritten(t *testing.T) {
	for _, mode := range []FailureMode{Strict, Partial} {
		t.Run(mode.String(), func(t *testing.T) {
			e := newEnv(t)
			a := newBlob("py", "expected")
			// 远端对象内容与 hash 不符
			e.remote.objects[a.loc()] = []byte("tampered")

			report, err := e.driver.Download(context.Background(), registryOf(a), mode)

			if mode == Strict {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrHashMismatch)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, e.countLogs("WARN"))
			}
			assert.Equal(t, 0, report.Result.Len())
			require.Len(t, report.Failed(), 1)

			var mismatch *core.HashMismatchError
			require.True(t, errors.As(report.Failed()[0].Err, &mismatch))
			assert.Equal(t, a.hash, mismatch.Expected)
			assert.Equal(t, core.ComputeIdentity([]byte("tampered")), mismatch.Actual)

			_, statErr := os.Stat(a.loc().Path(e.root, "tar"))
			assert.True(t, os.IsNotExist(statErr), "校验失败的内容不能落盘")
		})
	}
}

func TestDownload_StrictAbortsOnFirstFailure(t *testing.T) {
	e := newEnv(t)
	a, b, c := newBlob("a", "1"), newBlob("b", "2"), newBlob("c", "3")
	// a 缺失，b、c 在远端
	e.seedRemote(t, b, c)

	report, err := e.driver.Download(context.Background(), registryOf(a, b, c), Strict)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, remote.ErrTransfer)
	assert.Contains(t, err.Error(), "failed to download a:")

	assert.Equal(t, int32(1), e.remote.gets(), "失败之后不应再 fetch")
	assert.Equal(t, 0, report.Result.Len())
	assert.Len(t, report.Outcomes, 1)
}

func TestDownload_PartialContinues(t *testing.T) {
	e := newEnv(t)
	a, b, c := newBlob("a", "1"), newBlob("b", "2"), newBlob("c", "3")
	e.seedRemote(t, a, c)
	e.remote.failGet[c.loc()] = errUnreachable
	reg := registryOf(a, b, c)

	report, err := e.driver.Download(context.Background(), reg, Partial)
	require.NoError(t, err)

	assert.Equal(t, int32(3), e.remote.gets())
	assert.True(t, report.Result.Equal(registryOf(a)))
	assertSubset(t, report.Result, reg)
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, 2, e.countLogs("WARN"))
}

func TestDownload_Concurrent(t *testing.T) {
	e := newEnv(t, WithConcurrency(4))
	var blobs []blob
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		blobs = append(blobs, newBlob("runner", "content "+s), newBlob("other", s))
	}
	e.seedRemote(t, blobs...)
	reg := registryOf(blobs...)

	report, err := e.driver.Download(context.Background(), reg, Strict)
	require.NoError(t, err)
	assert.True(t, report.Result.Equal(reg))

	// Outcome 顺序必须与 Pairs() 一致，与完成顺序无关
	pairs := reg.Pairs()
	require.Len(t, report.Outcomes, len(pairs))
	for i, o := range report.Outcomes {
		assert.Equal(t, pairs[i], o.Pair)
	}
}

func TestDownload_ConcurrentStrictFailure(t *testing.T) {
	e := newEnv(t, WithConcurrency(2))
	a, b := newBlob("a", "1"), newBlob("b", "2")
	e.seedRemote(t, b)

	report, err := e.driver.Download(context.Background(), registryOf(a, b), Strict)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assertSubset(t, report.Result, registryOf(a, b))
	assert.False(t, report.Result.Contains(a.name, a.hash))
}

func TestDownload_ConcurrentStrictCancelsSiblings(t *testing.T) {
	a, b := newBlob("a", "1"), newBlob("b", "2")
	store := &gatedStore{SpyStore: NewSpyStore(), fail: a.loc(), block: b.loc(), started: make(chan struct{})}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&syncWriter{w: &logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := New(disk.NewAdapter(t.TempDir()), remote.New(store), WithConcurrency(2), WithLogger(logger))

	report, err := d.Download(context.Background(), registryOf(a, b), Strict)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, context.Canceled)

	// a 是唯一的失败；b 只是被取消
	require.Len(t, report.Outcomes, 2)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, a.loc(), storage.Locator{Name: report.Failed()[0].Pair.Name, Hash: report.Failed()[0].Pair.Hash})
	assert.Equal(t, StatusCanceled, report.Outcomes[1].Status)
	assert.ErrorIs(t, report.Outcomes[1].Err, context.Canceled)
	assert.Equal(t, 1, report.Count(StatusCanceled))
	assert.Equal(t, 0, report.Succeeded())
	assert.Equal(t, 0, report.Result.Len())

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "level=ERROR"), out)
	assert.Contains(t, out, "download canceled")
}

func TestDownload_Cancelled(t *testing.T) {
	e := newEnv(t)
	a := newBlob("a", "1")
	e.seedRemote(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.driver.Download(ctx, registryOf(a), Partial)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Result.Len())
	assert.Equal(t, int32(0), e.remote.gets())
}

// -----------------------------------------------------------------------------
// Upload
// -----------------------------------------------------------------------------

func TestUpload_BestEffort(t *testing.T) {
	e := newEnv(t)
	missing, present := newBlob("a", "never written"), newBlob("b", "on disk")
	e.seedLocal(t, present, present.data)

	report, err := e.driver.Upload(context.Background(), registryOf(missing, present), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, e.countLogs("WARN"), "第一个 Pair 只产生一条 warning")
	assert.Equal(t, int32(1), e.remote.puts(), "第二个 Pair 仍然被尝试")
	assert.True(t, report.Result.Equal(registryOf(present)))
	assert.Equal(t, present.data, e.remote.objects[present.loc()])
	assert.Equal(t, 2, strings.Count(e.logs.String(), "msg=trying"))
}

func TestUpload_MislabeledNeverPublished(t *testing.T) {
	e := newEnv(t)
	a := newBlob("a", "real content")
	e.seedLocal(t, a, []byte("something else"))

	report, err := e.driver.Upload(context.Background(), registryOf(a), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(0), e.remote.puts())
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, core.ErrHashMismatch)
	assert.Equal(t, 1, e.countLogs("WARN"))
}

func TestUpload_RemoteFailureContinues(t *testing.T) {
	e := newEnv(t)
	a, b := newBlob("a", "1"), newBlob("b", "2")
	e.seedLocal(t, a, a.data)
	e.seedLocal(t, b, b.data)
	e.remote.failPut[a.loc()] = errUnreachable

	report, err := e.driver.Upload(context.Background(), registryOf(a, b), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(2), e.remote.puts())
	assert.True(t, report.Result.Equal(registryOf(b)))
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, remote.ErrTransfer)
	assert.ErrorIs(t, report.Failed()[0].Err, errUnreachable)
}

func TestUpload_SkipExisting(t *testing.T) {
	e := newEnv(t)
	a, b := newBlob("a", "1"), newBlob("b", "2")
	e.seedLocal(t, a, a.data)
	e.seedLocal(t, b, b.data)
	e.seedRemote(t, a)

	report, err := e.driver.Upload(context.Background(), registryOf(a, b), UploadOptions{SkipExisting: true})
	require.NoError(t, err)

	assert.Equal(t, int32(1), e.remote.puts())
	assert.Equal(t, 1, report.Count(StatusSkipped))
	assert.Equal(t, 1, report.Count(StatusUploaded))
	assert.True(t, report.Result.Equal(registryOf(a, b)))
}

func TestUpload_Concurrent(t *testing.T) {
	e := newEnv(t, WithConcurrency(3))
	var blobs []blob
	for _, s := range []string{"1", "2", "3", "4", "5"} {
		bl := newBlob("runner", s)
		e.seedLocal(t, bl, bl.data)
		blobs = append(blobs, bl)
	}
	missing := newBlob("runner", "absent")
	reg := registryOf(append(blobs, missing)...)

	report, err := e.driver.Upload(context.Background(), reg, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(5), e.remote.puts())
	assert.True(t, report.Result.Equal(registryOf(blobs...)))
	assert.Len(t, report.Outcomes, 6)
}

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

func TestDriver_RecordsRuns(t *testing.T) {
	rec := &spyRecorder{}
	e := newEnv(t, WithRecorder(rec))
	a := newBlob("a", "1")
	e.seedRemote(t, a)

	_, err := e.driver.Download(context.Background(), registryOf(a), Strict)
	require.NoError(t, err)
	_, err = e.driver.Upload(context.Background(), registryOf(a), UploadOptions{})
	require.NoError(t, err)

	require.Len(t, rec.reports, 2)
	assert.Equal(t, DirDownload, rec.reports[0].Direction)
	assert.Equal(t, DirUpload, rec.reports[1].Direction)
	assert.False(t, rec.reports[0].FinishedAt.Before(rec.reports[0].StartedAt))
}

func TestDriver_RecorderFailureIsWarning(t *testing.T) {
	rec := &spyRecorder{err: errors.New("db down")}
	e := newEnv(t, WithRecorder(rec))

	_, err := e.driver.Download(context.Background(), registryOf(), Strict)
	require.NoError(t, err)
	assert.Contains(t, e.logs.String(), "failed to record run")
}

func TestParseFailureMode(t *testing.T) {
	m, err := ParseFailureMode("Partial")
	require.NoError(t, err)
	assert.Equal(t, Partial, m)

	m, err = ParseFailureMode("")
	require.NoError(t, err)
	assert.Equal(t, Strict, m)

	_, err = ParseFailureMode("lenient")
	assert.Error(t, err)
}
