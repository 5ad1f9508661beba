package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dicomsort/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sort runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger is disabled (ledger.enabled = false)")
				return nil
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				return showRun(cmd, store, id)
			}
			return listRuns(cmd, store, limit)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Show per-file outcomes for one run")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, store *ledger.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			formatWhen(run.StartedAt),
			string(run.Status),
			yesNo(run.DryRun),
			strconv.Itoa(run.Counts.Enumerated),
			strconv.Itoa(run.Counts.Persisted + run.Counts.Planned),
			strconv.Itoa(run.Counts.Failed),
			run.Target,
		})
	}
	headers := []string{"Run", "Started", "Status", "Dry run", "Files", "Sorted", "Failed", "Target"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
	return nil
}

func showRun(cmd *cobra.Command, store *ledger.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	outcomes, err := store.Outcomes(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(out, "  Started:  %s\n", formatWhen(run.StartedAt))
	fmt.Fprintf(out, "  Finished: %s\n", formatWhen(run.FinishedAt))
	fmt.Fprintf(out, "  Target:   %s\n", run.Target)
	fmt.Fprintf(out, "  Sources:  %s\n", strings.Join(run.Sources, ", "))
	if run.Error != "" {
		fmt.Fprintf(out, "  Error:    %s\n", run.Error)
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No file outcomes recorded")
		return nil
	}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		detail := o.Destination
		if o.Error != "" {
			detail = o.Error
		}
		rows = append(rows, []string{o.Source, o.Outcome, detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Source", "Outcome", "Destination / error"}, rows, nil))
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
