package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

var (
	errHistoryNotConfigured  = errors.New("history service not configured")
	errExporterNotConfigured = errors.New("exporter not configured")
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect previous research runs",
	Long: `List, show, compare and delete recorded research runs.

Runs can be referred to by their full ID or any unique prefix.`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, most recent first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a document version from a run",
	Long: `Print a document from a run's history. By default the latest version is
shown; --version selects a history entry (0 is the structured outline, then a
researched and an enhanced version per iteration).`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Show what changed between a run's versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryReport,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyShowCmd.Flags().Int("version", -1, "History entry to show (default latest)")
	historyShowCmd.Flags().String("format", "markdown", "Output format (markdown, json, yaml)")
	historyShowCmd.Flags().StringP("output", "o", "", "Write the document to a file")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errHistoryNotConfigured
	}

	runs, err := historyService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tSTOP\tITER\tCOST\tTITLE")
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t$%.4f\t%s\n",
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			orDash(string(r.StopReason)),
			r.Iterations, r.MaxIterations,
			r.Cost,
			truncate(r.Title, 40),
		)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errHistoryNotConfigured
	}
	ctx := cmd.Context()

	run, err := historyService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	seq, _ := cmd.Flags().GetInt("version") //nolint:errcheck // flag is registered
	if seq < 0 {
		if run.Versions == 0 {
			return fmt.Errorf("%w: run %s has no versions", domain.ErrNotFound, shortID(run.ID))
		}
		seq = run.Versions - 1
	}

	doc, err := historyService.Version(ctx, run.ID, seq)
	if err != nil {
		return fmt.Errorf("failed to get version %d: %w", seq, err)
	}

	if exporter == nil {
		return errExporterNotConfigured
	}

	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // flag is registered
	data, err := exporter.Export(doc, format)
	if err != nil {
		return fmt.Errorf("exporting document: %w", err)
	}

	output, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag is registered
	if output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	cmd.Printf("Wrote version %d (%s) of run %s to %s\n", seq, domain.StepForSeq(seq), shortID(run.ID), output)
	return nil
}

func runHistoryReport(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errHistoryNotConfigured
	}

	report, err := historyService.Report(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	cmd.Print(report)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errHistoryNotConfigured
	}
	ctx := cmd.Context()

	run, err := historyService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if err := historyService.Delete(ctx, run.ID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	cmd.Printf("Deleted run %s (%s)\n", shortID(run.ID), run.Title)
	return nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
