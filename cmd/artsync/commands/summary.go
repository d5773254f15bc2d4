package commands

import (
	"artifactsync/pkg/syncer"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// printSummary 在 stderr 打印一行人类可读的汇总，stdout 只留给 JSON
func printSummary(cmd *cobra.Command, report *syncer.Report) {
	if quiet {
		return
	}
	w := cmd.ErrOrStderr()

	failed := len(report.Failed())
	c := color.New(color.FgGreen)
	if failed > 0 {
		c = color.New(color.FgYellow)
	}

	switch report.Direction {
	case syncer.DirDownload:
		c.Fprintf(w, "%d downloaded, %d cached, %d failed",
			report.Count(syncer.StatusDownloaded), report.Count(syncer.StatusCached), failed)
	case syncer.DirUpload:
		c.Fprintf(w, "%d uploaded, %d skipped, %d failed",
			report.Count(syncer.StatusUploaded), report.Count(syncer.StatusSkipped), failed)
	}
	if n := report.Count(syncer.StatusCanceled); n > 0 {
		c.Fprintf(w, ", %d canceled", n)
	}
	c.Fprintln(w)
}
