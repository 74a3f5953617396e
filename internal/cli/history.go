package cli

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"rank-client/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled report requests",
		Long:  "Show previously submitted report requests and their outcomes, newest first.",
		RunE: app.closeJournal(func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter, err := historyFilter(cmd)
			if err != nil {
				return err
			}

			entries, err := app.Journal().ListRequests(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}

			if !app.Config.Journal.Enabled {
				output.Warning("Journal is disabled (journal.enabled = false)")
				return nil
			}
			if len(entries) == 0 {
				output.Info("No requests recorded.")
				return nil
			}

			table := NewTable(output, "TIME", "SECURITY", "BROKER", "RANGE", "STATUS", "RECORDS", "DURATION", "ERROR")
			for _, e := range entries {
				table.AddRow(
					FormatDateTime(e.StartedAt),
					TruncateString(e.Security, 24),
					e.Broker,
					e.Start+".."+e.End,
					output.StatusText(e.Status),
					FormatCount(int64(e.Records)),
					FormatDuration(e.Duration()),
					TruncateString(e.ErrorMessage, 40),
				)
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().String("status", "", "only show requests with this status")
	cmd.Flags().String("security", "", "only show requests for this security")
	cmd.Flags().Duration("since", 0, "only show requests started within this duration (e.g. 24h)")
	cmd.Flags().Int("limit", 20, "maximum number of requests to show")

	cmd.AddCommand(newHistoryStatsCmd(app))

	return cmd
}

func historyFilter(cmd *cobra.Command) (store.RequestFilter, error) {
	var filter store.RequestFilter
	var err error

	if filter.Status, err = cmd.Flags().GetString("status"); err != nil {
		return filter, err
	}
	if filter.Security, err = cmd.Flags().GetString("security"); err != nil {
		return filter, err
	}
	if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return filter, err
	}
	since, err := cmd.Flags().GetDuration("since")
	if err != nil {
		return filter, err
	}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}
	return filter, nil
}

func newHistoryStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize request outcomes",
		RunE: app.closeJournal(func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			since, _ := cmd.Flags().GetDuration("since")
			counts, err := app.Journal().CountByStatus(ctx, time.Now().Add(-since))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(counts)
			}

			statuses := make([]string, 0, len(counts))
			total := 0
			for status, n := range counts {
				statuses = append(statuses, status)
				total += n
			}
			sort.Strings(statuses)

			output.Bold("Requests in the last %s", FormatDuration(since))
			for _, status := range statuses {
				output.Printf("  %-14s %s\n", output.StatusText(status), FormatCount(int64(counts[status])))
			}
			output.Printf("  %-14s %s\n", "total", FormatCount(int64(total)))
			return nil
		}),
	}

	cmd.Flags().Duration("since", 7*24*time.Hour, "time window to summarize")
	return cmd
}
