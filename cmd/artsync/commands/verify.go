package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"artifactsync/pkg/core"
	"artifactsync/pkg/registry"
	"artifactsync/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verifyExpectedHash string

var verifyCmd = &cobra.Command{
	Use:   "verify-file <file>",
	Short: "Check that a file's content matches its hash",
	Long: `Hashes the file and compares it against --expected-hash, or against the
file name with its archive extension (archive.ext, default "tar") removed
when no hash is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerifyFile,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyExpectedHash, "expected-hash", "", "expected hash (default: derived from the file name)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerifyFile(cmd *cobra.Command, args []string) error {
	path := args[0]

	// 1. 期望值：显式给出 > 文件名推导
	expected := types.Hash(verifyExpectedHash)
	if expected == "" {
		expected = registry.DeriveExpectedHash(filepath.Base(path), viper.GetString("archive.ext"))
	}
	if !expected.IsWellFormed() {
		return fmt.Errorf("invalid hash %s", expected)
	}

	// 2. 流式计算，不把整个归档读进内存
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := core.VerifyReader(f, expected); err != nil {
		return err
	}

	logger.Debug("verified", "file", path, "hash", expected.Short())
	return nil
}
