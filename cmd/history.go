package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/mouthswap/internal/store"
	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/spf13/cobra"
)

var historyJob string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded swap jobs, or the failed frames of one job",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			utils.ShowError("Job ledger unavailable", err, nil)
			return err
		}
		return runHistory(cmd.Context(), os.Stdout)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyJob, "job", "", "Show the failed frames of this job ID")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, out io.Writer) error {
	if historyJob != "" {
		return printFailures(ctx, out, historyJob)
	}

	jobs, err := DB.ListJobs(ctx)
	if err != nil {
		utils.ShowError("Failed to list jobs", err, nil)
		return err
	}
	printJobs(out, jobs)
	return nil
}

func printJobs(out io.Writer, jobs []store.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "JOB\tDEST\tSOURCE\tOUTPUT\tFRAMES\tSWAPPED\tFAILED\tSTARTED")
	fmt.Fprintln(w, "---\t----\t------\t------\t------\t-------\t------\t-------")

	for _, j := range jobs {
		frames := "running"
		if j.FinishedAt != nil {
			frames = fmt.Sprint(j.Frames)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(j.ID), j.DestPath, j.SourcePath, j.OutputPath, frames, j.Swapped, j.Failures,
			j.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func printFailures(ctx context.Context, out io.Writer, jobID string) error {
	failures, err := DB.Failures(ctx, jobID)
	if err != nil {
		utils.ShowError("Failed to load job failures", err, nil)
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintf(out, "No failed frames recorded for job %s.\n", shortID(jobID))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FRAME\tKIND\tDETAIL")
	fmt.Fprintln(w, "-----\t----\t------")
	for _, f := range failures {
		fmt.Fprintf(w, "%d\t%s\t%s\n", f.Index, f.Kind, f.Detail)
	}
	w.Flush()
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
