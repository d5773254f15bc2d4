package commands

import (
	"artifactsync/pkg/registry"
	"artifactsync/pkg/syncer"

	"github.com/spf13/cobra"
)

var (
	uploadRegistry     string
	uploadRoot         string
	uploadSkipExisting bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Publish every artifact in a registry from a local tree",
	Long: `Reads <root>/<name>/<hash>.tar for each pair of the registry, verifies it and
publishes it to the remote store. Upload is best-effort: failures are logged
as warnings and never abort the batch.`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadRegistry, "registry", "", "registry file, or - for stdin")
	uploadCmd.Flags().StringVar(&uploadRoot, "root", ".", "local root to read archives from")
	uploadCmd.Flags().BoolVar(&uploadSkipExisting, "skip-existing", false, "do not re-publish objects already in the remote store")
	_ = uploadCmd.MarkFlagRequired("registry")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(cmd, uploadRoot, false)
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	// 1. 凭证: 失败即终止
	if err := a.CheckCredentials(cmd.Context()); err != nil {
		return err
	}

	// 2. 读取 Registry
	reg, err := registry.Load(uploadRegistry, cmd.InOrStdin())
	if err != nil {
		return err
	}

	report, err := a.Driver(logger).Upload(cmd.Context(), reg, syncer.UploadOptions{SkipExisting: uploadSkipExisting})
	if err != nil {
		return err
	}
	printSummary(cmd, report)

	return registry.Encode(cmd.OutOrStdout(), map[string]registry.Registry{"uploaded": report.Result})
}
