package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"artifactsync/pkg/core"
	"artifactsync/pkg/registry"
	"artifactsync/pkg/remote"
	"artifactsync/pkg/storage"
	"artifactsync/pkg/storage/disk"
	"artifactsync/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyStore: 内存远端，统计调用次数并支持注入故障
// -----------------------------------------------------------------------------

var errUnreachable = errors.New("network unreachable")

type SpyStore struct {
	getCount int32
	putCount int32
	hasCount int32

	mu      sync.Mutex
	objects map[storage.Locator][]byte
	failGet map[storage.Locator]error
	failPut map[storage.Locator]error
	offline bool
}

func NewSpyStore() *SpyStore {
	return &SpyStore{
		objects: make(map[storage.Locator][]byte),
		failGet: make(map[storage.Locator]error),
		failPut: make(map[storage.Locator]error),
	}
}

func (s *SpyStore) Get(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	atomic.AddInt32(&s.getCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, errUnreachable
	}
	if err := s.failGet[loc]; err != nil {
		return nil, err
	}
	data, ok := s.objects[loc]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SpyStore) Put(ctx context.Context, loc storage.Locator, data []byte) error {
	atomic.AddInt32(&s.putCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return errUnreachable
	}
	if err := s.failPut[loc]; err != nil {
		return err
	}
	s.objects[loc] = bytes.Clone(data)
	return nil
}

func (s *SpyStore) Has(ctx context.Context, loc storage.Locator) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return false, errUnreachable
	}
	_, ok := s.objects[loc]
	return ok, nil
}

// gatedStore: fail 等 block 开始之后才返回 ErrNotFound；block 一直阻塞到 ctx 取消
type gatedStore struct {
	*SpyStore
	fail, block storage.Locator
	started     chan struct{}
}

func (s *gatedStore) Get(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	switch loc {
	case s.fail:
		select {
		case <-s.started:
		case <-time.After(5 * time.Second):
		}
		return nil, storage.ErrNotFound
	case s.block:
		close(s.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.SpyStore.Get(ctx, loc)
}

func (s *SpyStore) setOffline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = v
}

func (s *SpyStore) gets() int32 { return atomic.LoadInt32(&s.getCount) }
func (s *SpyStore) puts() int32 { return atomic.LoadInt32(&s.putCount) }

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type blob struct {
	name types.ArtifactName
	data []byte
	hash types.Hash
}

func newBlob(name types.ArtifactName, content string) blob {
	data := []byte(content)
	return blob{name: name, data: data, hash: core.ComputeIdentity(data)}
}

func (b blob) loc() storage.Locator { return storage.Locator{Name: b.name, Hash: b.hash} }

func registryOf(blobs ...blob) registry.Registry {
	reg := make(registry.Registry)
	for _, b := range blobs {
		reg.Add(b.name, b.hash)
	}
	return reg
}

// env 把本地磁盘树、远端 Spy 和日志缓冲组装在一起
type env struct {
	root   string
	local  *disk.Adapter
	remote *SpyStore
	logs   *bytes.Buffer
	driver *Driver
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	root := t.TempDir()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(&syncWriter{w: logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := &env{
		root:   root,
		local:  disk.NewAdapter(root),
		remote: NewSpyStore(),
		logs:   logs,
	}
	e.driver = New(e.local, remote.New(e.remote), append([]Option{WithLogger(logger)}, opts...)...)
	return e
}

func (e *env) seedRemote(t *testing.T, blobs ...blob) {
	t.Helper()
	for _, b := range blobs {
		e.remote.objects[b.loc()] = b.data
	}
}

func (e *env) seedLocal(t *testing.T, b blob, content []byte) {
	t.Helper()
	require.NoError(t, e.local.Put(context.Background(), b.loc(), content))
}

func (e *env) countLogs(level string) int {
	return strings.Count(e.logs.String(), "level="+level)
}

// syncWriter 让并发 goroutine 安全地写同一个 buffer
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// spyRecorder 记录 Record 调用
type spyRecorder struct {
	reports []*Report
	err     error
}

func (r *spyRecorder) Record(ctx context.Context, report *Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

// assertSubset: Result 必须是输入 Registry 的子集
func assertSubset(t *testing.T, result, input registry.Registry) {
	t.Helper()
	for _, p := range result.Pairs() {
		require.True(t, input.Contains(p.Name, p.Hash), fmt.Sprintf("result contains %s which is not in input", p))
	}
}
