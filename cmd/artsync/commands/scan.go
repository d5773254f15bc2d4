package commands

import (
	"artifactsync/pkg/registry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanRoot string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Print the registry of a local tree",
	Long: `Walks <root>/<name>/<hash>.tar and prints the registry it describes.
Paths matched by <root>/.artsyncignore are skipped. Content is not verified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Scan(scanRoot, viper.GetString("archive.ext"))
		if err != nil {
			return err
		}
		logger.Debug("scan finished", "root", scanRoot, "pairs", reg.Len())
		return registry.Encode(cmd.OutOrStdout(), reg)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRoot, "root", ".", "local root")
	rootCmd.AddCommand(scanCmd)
}
