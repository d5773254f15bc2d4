package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀：remote.bucket -> ARTSYNC_REMOTE_BUCKET
const EnvPrefix = "ARTSYNC"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 读取环境变量 (ARTSYNC_REMOTE_BUCKET 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 3. 配置文件：显式指定的必须存在，否则按优先级搜索第一个存在的
	if cfgFile == "" {
		cfgFile = findConfigFile()
	}
	if cfgFile == "" {
		slog.Debug("no config file found, using defaults/env vars")
		return nil
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("fatal error config file: %w", err)
	}
	slog.Debug("using config file", "path", viper.ConfigFileUsed())
	return nil
}

// SearchPaths 返回候选配置文件，按优先级排列：
// 1. ./artsync.yaml
// 2. ./.artsync/config.yaml
// 3. $HOME/.artsync/config.yaml
func SearchPaths() []string {
	paths := []string{
		"artsync.yaml",
		filepath.Join(".artsync", "config.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".artsync", "config.yaml"))
	}
	return paths
}

func findConfigFile() string {
	for _, p := range SearchPaths() {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Debug("skipping config candidate", "path", p, "err", err)
		}
	}
	return ""
}

func setDefaults() {
	// 远端默认值
	viper.SetDefault("remote.type", "gcs")
	viper.SetDefault("remote.bucket", "gh-af")
	viper.SetDefault("remote.prefix", "genvm_runners")
	viper.SetDefault("remote.region", "us-east-1")
	viper.SetDefault("archive.ext", "tar")

	// 凭证默认值
	viper.SetDefault("credential.type", "command")
	viper.SetDefault("credential.command", "gcloud auth print-access-token")
	viper.SetDefault("credential.env", "ARTSYNC_TOKEN")
	// download / status 默认匿名读取公开对象，不需要 gcloud
	viper.SetDefault("credential.anonymous_reads", true)

	// 可选组件：空值表示禁用
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("journal.dsn", "")

	viper.SetDefault("sync.concurrency", 1)
}
