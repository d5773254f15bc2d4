// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"artifactsync/pkg/credential"
	"artifactsync/pkg/journal"
	"artifactsync/pkg/remote"
	"artifactsync/pkg/storage"
	"artifactsync/pkg/storage/cache"
	"artifactsync/pkg/storage/disk"
	"artifactsync/pkg/storage/gcs"
	"artifactsync/pkg/storage/s3"
	"artifactsync/pkg/syncer"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有一次命令执行期间的所有“单例”服务
type App struct {
	// Local 本地同步树
	Local *disk.Adapter
	// Remote 远端 Blob Store (可能被 Redis 缓存装饰)
	Remote storage.Store
	Client *remote.Client
	// Journal 为 nil 表示未启用运行日志
	Journal *journal.Repository
	// Credentials 是远端实际使用的 Token 来源；匿名或非 gcs 远端时为 nil
	Credentials credential.Provider

	closers []io.Closer
}

// Options 描述一条命令需要哪些组件
type Options struct {
	// Root 本地同步树根目录
	Root string
	// Anonymous 为 true 时 GCS 不携带凭证 (download/status 读取公开对象)
	Anonymous bool
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context, opts Options) (*App, error) {
	a := &App{}

	// 1. 本地树
	root := opts.Root
	if root == "" {
		root = "."
	}
	a.Local = disk.NewAdapter(root, disk.WithExt(viper.GetString("archive.ext")))

	// 2. 凭证 (只有 gcs 使用 Bearer Token)
	var creds credential.Provider
	if !opts.Anonymous {
		p, err := initCredentials()
		if err != nil {
			return nil, err
		}
		creds = p
	}

	// 3. 远端存储 + 可选的 Redis 存在性缓存
	store, err := initStore(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.track(store)

	if url := viper.GetString("cache.redis_url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			// 缓存只是加速，不可用时降级为直连
			slog.Warn("redis cache disabled", "err", err)
		} else {
			store = cached
			a.track(cached)
		}
	}
	a.Remote = store
	a.Client = remote.New(store)
	if t := viper.GetString("remote.type"); t == "gcs" || t == "" {
		a.Credentials = creds
	}

	// 4. 可选的运行日志
	if dsn := viper.GetString("journal.dsn"); dsn != "" {
		repo, db, err := OpenJournal(ctx)
		if err != nil {
			slog.Warn("run journal disabled", "dsn", dsn, "err", err)
		} else {
			a.Journal = repo
			a.closers = append(a.closers, db)
		}
	}

	return a, nil
}

// Driver 用当前配置构造同步驱动
func (a *App) Driver(logger *slog.Logger) *syncer.Driver {
	opts := []syncer.Option{
		syncer.WithConcurrency(viper.GetInt("sync.concurrency")),
		syncer.WithLogger(logger),
	}
	if a.Journal != nil {
		opts = append(opts, syncer.WithRecorder(a.Journal))
	}
	return syncer.New(a.Local, a.Client, opts...)
}

// CheckCredentials 立即获取一次 Token，凭证不可用时在任何传输之前失败
// 成功的 Token 由 credential.Cached 复用，后续发布不会再执行外部命令
func (a *App) CheckCredentials(ctx context.Context) error {
	if a.Credentials == nil {
		return nil
	}
	if _, err := a.Credentials.Token(ctx); err != nil {
		return fmt.Errorf("failed to acquire credentials: %w", err)
	}
	return nil
}

// Close 释放远端客户端、Redis 连接和数据库连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// initStore 根据 remote.type 选择后端
func initStore(ctx context.Context, creds credential.Provider) (storage.Store, error) {
	storageType := viper.GetString("remote.type")
	prefix := viper.GetString("remote.prefix")
	ext := viper.GetString("archive.ext")

	switch storageType {
	case "gcs", "":
		bucket := viper.GetString("remote.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("gcs bucket is required")
		}
		slog.Debug("using gcs storage", "bucket", bucket, "prefix", prefix)
		store, err := gcs.NewAdapter(ctx, gcs.Config{
			Bucket:      bucket,
			Prefix:      prefix,
			Ext:         ext,
			Endpoint:    viper.GetString("remote.endpoint"),
			Credentials: creds,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case "s3":
		bucket := viper.GetString("remote.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		slog.Debug("using s3 storage", "bucket", bucket, "endpoint", viper.GetString("remote.endpoint"))
		store, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("remote.endpoint"),
			Region:          viper.GetString("remote.region"),
			Bucket:          bucket,
			Prefix:          prefix,
			Ext:             ext,
			AccessKeyID:     viper.GetString("remote.access_key_id"),
			SecretAccessKey: viper.GetString("remote.secret_access_key"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case "disk":
		path := viper.GetString("remote.path")
		if path == "" {
			return nil, fmt.Errorf("disk remote path is required")
		}
		slog.Debug("using disk storage", "path", path)
		return disk.NewAdapter(path, disk.WithExt(ext), disk.WithPrefix(prefix)), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// initCredentials 根据 credential.type 选择 Token 来源
func initCredentials() (credential.Provider, error) {
	switch t := viper.GetString("credential.type"); t {
	case "command", "":
		argv := strings.Fields(viper.GetString("credential.command"))
		// 整个进程只执行一次外部命令
		return credential.Cached(credential.Command(argv...)), nil
	case "env":
		return credential.Env(viper.GetString("credential.env")), nil
	case "static":
		return credential.Static(viper.GetString("credential.token")), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported credential type: %s", t)
	}
}

// OpenJournal 按 journal.dsn 打开运行日志
func OpenJournal(ctx context.Context) (*journal.Repository, *journal.DB, error) {
	db, err := journal.Open(ctx, viper.GetString("journal.dsn"))
	if err != nil {
		return nil, nil, err
	}
	return journal.NewRepository(db), db, nil
}
