package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"artifactsync/pkg/storage"

	"github.com/redis/go-redis/v9"
)

var _ storage.Store = (*CachedStore)(nil)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
// 只缓存 "对象存在" 这一事实，不缓存 Blob 内容
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 GCS)
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(loc storage.Locator) string {
	return "artsync:obj:" + loc.String()
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, loc storage.Locator) (bool, error) {
	key := s.cacheKey(loc)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级：退化为无缓存模式，直接查底层存储
		slog.Warn("redis unavailable, falling back to backend", "err", err)
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, loc)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填
	if found {
		s.mark(ctx, key)
	}
	return found, nil
}

// Put 写穿透：底层写入成功后才写 Redis
func (s *CachedStore) Put(ctx context.Context, loc storage.Locator, data []byte) error {
	if err := s.backend.Put(ctx, loc, data); err != nil {
		return err
	}
	s.mark(ctx, s.cacheKey(loc))
	return nil
}

// Get 透传
func (s *CachedStore) Get(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	return s.backend.Get(ctx, loc)
}

// Close 关闭 Redis 连接
func (s *CachedStore) Close() error {
	return s.client.Close()
}

// mark 的错误可以忽略，不影响主流程
func (s *CachedStore) mark(ctx context.Context, key string) {
	if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		slog.Debug("redis set failed", "key", key, "err", err)
	}
}
