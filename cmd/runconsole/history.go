package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/runconsole/internal/persistence"
)

func newHistoryCmd(f *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(cmd, *f)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), historyTable(records))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", persistence.DefaultListLimit, "Maximum runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one run with its steps and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *f)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("no run %q in history", args[0])
			}
			if err != nil {
				return err
			}
			writeRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a run from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *f)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func openHistory(cmd *cobra.Command, f rootFlags) (*persistence.SQLiteStore, error) {
	cfg, _, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return persistence.NewSQLiteStore(cmd.Context(), path)
}

// historyTable renders runs as a rounded table, newest first.
func historyTable(records []persistence.RunRecord) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.FinishedAt.Local().Format(time.DateTime),
			r.TaskID,
			r.Status,
			strconv.Itoa(r.Completed),
			formatDuration(r.DurationMS),
			fmt.Sprintf("$%.4f", r.CostUSD),
			clip(r.Command, 48),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("FINISHED", "TASK", "STATUS", "DONE", "DURATION", "COST", "COMMAND").
		Rows(rows...)
	return t.String()
}

func writeRecord(w io.Writer, r *persistence.RunRecord) {
	fmt.Fprintf(w, "Task:     %s\n", r.TaskID)
	fmt.Fprintf(w, "Command:  %s\n", r.Command)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Format:   %s\n", r.Format)
	fmt.Fprintf(w, "Duration: %s (planning %s)\n", formatDuration(r.DurationMS), formatDuration(r.PlanningMS))
	fmt.Fprintf(w, "Cost:     $%.4f\n", r.CostUSD)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", r.Error)
	}

	if len(r.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, s := range r.Steps {
			line := fmt.Sprintf("  %-10s %-12s %s", s.Status, s.ID, s.Action)
			if s.Target != "" {
				line += " " + s.Target
			}
			if s.Error != "" {
				line += " (" + s.Error + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(r.Output) > 0 {
		fmt.Fprintf(w, "\nOutput:\n%s\n", strings.TrimSpace(string(r.Output)))
	}
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
