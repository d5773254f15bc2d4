package commands

import (
	"artifactsync/pkg/registry"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge-registries FILE...",
	Short: "Print the union of several registries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	regs := make([]registry.Registry, 0, len(args))
	for _, path := range args {
		reg, err := registry.Load(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		regs = append(regs, reg)
	}
	return registry.Encode(cmd.OutOrStdout(), registry.Merge(regs...))
}
