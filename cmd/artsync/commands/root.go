package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"artifactsync/pkg/app"
	"artifactsync/pkg/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	// logger 在 PersistentPreRunE 中按 --verbose/--quiet 初始化，写到 stderr
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "artsync",
	Short: "artsync: content-addressed artifact sync",
	Long: `Synchronizes versioned artifact archives between a local directory tree
(<root>/<name>/<hash>.tar) and a remote blob store, driven by a JSON registry
mapping artifact names to SHA-256 hashes. Every blob is verified before it is
written locally or published remotely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd.ErrOrStderr())
		slog.SetDefault(logger)

		if err := bindFlags(cmd.Root()); err != nil {
			return err
		}
		if err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return nil
	},
}

// Execute 是入口；Ctrl-C 会取消正在进行的同步
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// PrintError 把致命错误以红色输出到 w
func PrintError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintln(w, err)
}

func init() {
	pf := rootCmd.PersistentFlags()

	// 1. 全局参数
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./artsync.yaml or $HOME/.artsync/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	// 2. 绑定到 Viper：用户既可以在 yaml 里写，也可以用 flag 覆盖
	pf.String("remote-type", "", "remote store type (gcs|s3|disk)")
	pf.String("bucket", "", "remote bucket")
	pf.String("prefix", "", "object key prefix inside the bucket")
	pf.Int("concurrency", 0, "pairs processed in parallel (default 1)")
	pf.String("journal", "", "run journal DSN (sqlite path or postgres:// URL)")
}

// flagBindings: viper key -> 全局 flag
var flagBindings = map[string]string{
	"remote.type":      "remote-type",
	"remote.bucket":    "bucket",
	"remote.prefix":    "prefix",
	"sync.concurrency": "concurrency",
	"journal.dsn":      "journal",
}

// bindFlags 在每次执行时绑定，viper.Reset 之后仍然生效
func bindFlags(root *cobra.Command) error {
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, root.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newApp 为需要远端的命令组装依赖；调用方负责 Close
func newApp(cmd *cobra.Command, root string, anonymous bool) (*app.App, error) {
	a, err := app.NewApp(cmd.Context(), app.Options{Root: root, Anonymous: anonymous})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artsync: %w", err)
	}
	return a, nil
}

// closeApp 把 Close 的错误并入命令的返回值
func closeApp(a *app.App, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
