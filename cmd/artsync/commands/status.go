package commands

import (
	"artifactsync/pkg/registry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	statusRegistry string
	statusRoot     string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which registry pairs are local, remote or missing",
	Long: `Checks each pair of the registry against the local tree (content verified)
and the remote store (existence only). Nothing is downloaded or written.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRegistry, "registry", "", "registry file, or - for stdin")
	statusCmd.Flags().StringVar(&statusRoot, "root", ".", "local root")
	_ = statusCmd.MarkFlagRequired("registry")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) (err error) {
	reg, err := registry.Load(statusRegistry, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(cmd, statusRoot, viper.GetBool("credential.anonymous_reads"))
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	inv, err := a.Driver(logger).Status(cmd.Context(), reg)
	if err != nil {
		return err
	}
	return registry.Encode(cmd.OutOrStdout(), inv)
}
