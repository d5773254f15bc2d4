package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"artifactsync/pkg/credential"
	"artifactsync/pkg/storage"
	"artifactsync/pkg/types"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ storage.Store = (*Adapter)(nil)

// Adapter 实现了 storage.Store 接口，对象位于 gs://<bucket>/<prefix>/<name>/<hash>.<ext>
type Adapter struct {
	client *gstorage.Client
	bucket *gstorage.BucketHandle
	prefix string
	ext    string
}

// Config 用于初始化 Adapter
type Config struct {
	Bucket string
	Prefix string
	Ext    string
	// Endpoint 覆盖默认的 API 地址 (测试或私有网关)
	Endpoint string
	// Credentials 为 nil 时匿名访问 (只能读取公开对象)
	Credentials credential.Provider
}

// NewAdapter 初始化 GCS 客户端
// 凭证以 Bearer Token 的形式注入，我们不解析也不刷新它
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.Credentials != nil {
		opts = append(opts, option.WithTokenSource(credential.TokenSource(ctx, cfg.Credentials)))
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	ext := cfg.Ext
	if ext == "" {
		ext = types.DefaultArchiveExt
	}

	return &Adapter{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
		ext:    ext,
	}, nil
}

func (s *Adapter) key(loc storage.Locator) string {
	return loc.Key(s.prefix, s.ext)
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	r, err := s.bucket.Object(s.key(loc)).NewReader(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs get failed: %w", err)
	}
	return r, nil
}

// Put 上传对象
// ChunkSize = 0 让整个对象在一次请求里发送 (非 resumable)，写入要么成功要么不可见
func (s *Adapter) Put(ctx context.Context, loc storage.Locator, data []byte) error {
	w := s.bucket.Object(s.key(loc)).NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("gcs put failed: %w", err)
	}
	// Close 才会真正提交，错误必须检查
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put failed: %w", err)
	}
	return nil
}

// Has 检查对象是否存在
func (s *Adapter) Has(ctx context.Context, loc storage.Locator) (bool, error) {
	_, err := s.bucket.Object(s.key(loc)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcs attrs failed: %w", err)
}

// Close 释放底层连接
func (s *Adapter) Close() error {
	return s.client.Close()
}
