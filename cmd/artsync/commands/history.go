package commands

import (
	"errors"
	"time"

	"artifactsync/pkg/app"
	"artifactsync/pkg/journal"
	"artifactsync/pkg/registry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

var (
	historyLimit int
	historyRun   uint
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs from the journal",
	Long: `Prints one JSON object per run, newest first. With --run, prints the
per-pair entries of that run instead. Requires journal.dsn (or --journal).`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().UintVar(&historyRun, "run", 0, "show the entries of one run")
	rootCmd.AddCommand(historyCmd)
}

// runView 是 history 输出的一行
type runView struct {
	ID        uint           `json:"id"`
	Direction string         `json:"direction"`
	Mode      string         `json:"mode"`
	Registry  string         `json:"registry"`
	Started   time.Time      `json:"started"`
	Duration  string         `json:"duration"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Result    datatypes.JSON `json:"result,omitempty"`
}

type entryView struct {
	Pair   string `json:"pair"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) (err error) {
	if viper.GetString("journal.dsn") == "" {
		return errors.New("run journal is not configured (set journal.dsn or --journal)")
	}

	repo, db, err := app.OpenJournal(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out := cmd.OutOrStdout()

	if historyRun != 0 {
		if _, err := repo.GetRun(cmd.Context(), historyRun); err != nil {
			return err
		}
		entries, err := repo.Entries(cmd.Context(), historyRun)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := registry.Encode(out, entryView{Pair: e.Name + ":" + e.Hash, Status: e.Status, Error: e.Error}); err != nil {
				return err
			}
		}
		return nil
	}

	runs, err := repo.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if err := registry.Encode(out, newRunView(r)); err != nil {
			return err
		}
	}
	return nil
}

func newRunView(r journal.Run) runView {
	return runView{
		ID:        r.ID,
		Direction: r.Direction,
		Mode:      r.Mode,
		Registry:  r.RegistryDigest,
		Started:   r.StartedAt.UTC(),
		Duration:  r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Result:    r.Result,
	}
}
