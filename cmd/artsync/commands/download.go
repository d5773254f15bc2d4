package commands

import (
	"artifactsync/pkg/registry"
	"artifactsync/pkg/syncer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	downloadRegistry     string
	downloadDest         string
	downloadAllowPartial bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fetch every artifact in a registry into a local tree",
	Long: `Downloads each name:hash pair of the registry to <dest>/<name>/<hash>.tar.
Files already present with the right content are not fetched again; corrupted
files are removed and replaced. Without --allow-partial the first failure
aborts the run.`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadRegistry, "registry", "", "registry file, or - for stdin")
	downloadCmd.Flags().StringVar(&downloadDest, "dest", ".", "destination root")
	downloadCmd.Flags().BoolVar(&downloadAllowPartial, "allow-partial", false, "log failures as warnings and continue")
	_ = downloadCmd.MarkFlagRequired("registry")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) (err error) {
	// 1. 输入错误在任何网络 I/O 之前失败
	reg, err := registry.Load(downloadRegistry, cmd.InOrStdin())
	if err != nil {
		return err
	}

	mode := syncer.Strict
	if downloadAllowPartial {
		mode = syncer.Partial
	}

	// 2. 组装依赖
	a, err := newApp(cmd, downloadDest, viper.GetBool("credential.anonymous_reads"))
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	// 3. 同步
	report, err := a.Driver(logger).Download(cmd.Context(), reg, mode)
	if err != nil {
		return err
	}
	printSummary(cmd, report)

	return registry.Encode(cmd.OutOrStdout(), map[string]registry.Registry{"downloaded": report.Result})
}
