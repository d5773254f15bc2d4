package commands

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artifactsync/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// cliEnv 是一次命令执行的隔离环境：本地树 + disk 类型的远端
type cliEnv struct {
	local  string
	remote string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	e := &cliEnv{local: t.TempDir(), remote: t.TempDir()}
	t.Setenv("ARTSYNC_REMOTE_TYPE", "disk")
	t.Setenv("ARTSYNC_REMOTE_PATH", e.remote)
	t.Setenv("ARTSYNC_CREDENTIAL_TYPE", "none")
	return e
}

// execute 运行 rootCmd，返回 stdout / stderr
// 全局 flag 和 viper 状态在每次执行前重置
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func hashOf(content string) types.Hash {
	sum := sha256.Sum256([]byte(content))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// writeArchive 写 <root>/<name>/<hash>.tar
func writeArchive(t *testing.T, root, name string, hash types.Hash, content string) string {
	t.Helper()
	path := filepath.Join(root, name, string(hash)+".tar")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeRemote 远端布局带 prefix: <remote>/genvm_runners/<name>/<hash>.tar
func (e *cliEnv) writeRemote(t *testing.T, name, content string) types.Hash {
	t.Helper()
	h := hashOf(content)
	writeArchive(t, filepath.Join(e.remote, "genvm_runners"), name, h, content)
	return h
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
