package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

var researchCmd = &cobra.Command{
	Use:   "research <title>",
	Short: "Research an outline into a cited document",
	Long: `Structure an outline into sections, then iterate research, rewriting and
verification until every section reaches the confidence threshold.

The outline is read from --outline, from --outline-file, or from stdin when
--outline-file is "-". Progress is written to stderr and the final document
to stdout unless --output is given.

Examples:
  strata research "Ocean tides" --outline "1. Causes 2. Spring and neap tides"
  strata research "Ocean tides" --outline-file outline.md --max-iterations 5
  cat outline.md | strata research "Ocean tides" --outline-file - --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("outline", "", "Outline text")
	researchCmd.Flags().StringP("outline-file", "f", "", "Read the outline from a file (- for stdin)")
	researchCmd.Flags().IntP("max-iterations", "n", 0, "Iteration ceiling (default from settings)")
	researchCmd.Flags().Float64P("threshold", "t", 0, "Confidence threshold in [0,1] (default from settings)")
	researchCmd.Flags().Float64("budget", 0, "Cost budget in USD for this run (default from settings)")
	researchCmd.Flags().StringP("output", "o", "", "Write the final document to a file")
	researchCmd.Flags().String("format", "markdown", "Output format (markdown, json, yaml)")
	researchCmd.Flags().Bool("tui", false, "Show the live progress view")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	req, err := buildRunRequest(cmd, args[0])
	if err != nil {
		return err
	}

	svc, closeFn, err := openResearch()
	if err != nil {
		return err
	}
	defer closeFn()

	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // flag is registered
	if format, err = svc.ResolveFormat(format); err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(svc.Formats(), ", "))
	}

	useTUI, _ := cmd.Flags().GetBool("tui") //nolint:errcheck // flag is registered
	var outcome *driving.ResearchOutcome
	if useTUI {
		outcome, err = tui.Run(cmd.Context(), &tui.Ports{Research: svc}, req)
	} else {
		outcome, err = svc.Research(cmd.Context(), req, newProgressPrinter(cmd.ErrOrStderr(), req))
	}

	if outcome != nil {
		printSummary(cmd.ErrOrStderr(), outcome)
		if writeErr := writeFinal(cmd, svc, outcome, format); writeErr != nil {
			return errors.Join(err, writeErr)
		}
	}
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}
	return nil
}

// buildRunRequest merges flags with the stored loop settings.
func buildRunRequest(cmd *cobra.Command, title string) (domain.RunRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.RunRequest{}, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}

	outline, err := readOutline(cmd)
	if err != nil {
		return domain.RunRequest{}, err
	}

	loop := domain.DefaultAppSettings().Loop
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			loop = settings.Loop
		}
	}

	req := domain.RunRequest{
		Title:               title,
		Outline:             outline,
		MaxIterations:       loop.MaxIterations,
		ConfidenceThreshold: loop.ConfidenceThreshold,
	}

	flags := cmd.Flags()
	if flags.Changed("max-iterations") {
		req.MaxIterations, _ = flags.GetInt("max-iterations") //nolint:errcheck // flag is registered
		if req.MaxIterations < 1 || req.MaxIterations > domain.MaxAllowedIterations {
			return domain.RunRequest{}, fmt.Errorf("%w: --max-iterations must be between 1 and %d",
				domain.ErrInvalidInput, domain.MaxAllowedIterations)
		}
	}
	if flags.Changed("threshold") {
		req.ConfidenceThreshold, _ = flags.GetFloat64("threshold") //nolint:errcheck // flag is registered
		if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
			return domain.RunRequest{}, fmt.Errorf("%w: --threshold must be between 0 and 1", domain.ErrInvalidInput)
		}
	}
	if flags.Changed("budget") {
		req.Budget, _ = flags.GetFloat64("budget") //nolint:errcheck // flag is registered
		if req.Budget <= 0 {
			return domain.RunRequest{}, fmt.Errorf("%w: --budget must be positive", domain.ErrInvalidInput)
		}
	}
	return req, nil
}

func readOutline(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("outline")     //nolint:errcheck // flag is registered
	path, _ := cmd.Flags().GetString("outline-file") //nolint:errcheck // flag is registered

	switch {
	case text != "" && path != "":
		return "", fmt.Errorf("%w: use either --outline or --outline-file", domain.ErrInvalidInput)
	case path == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading outline from stdin: %w", err)
		}
		text = string(data)
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading outline: %w", err)
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: an outline is required (--outline or --outline-file)", domain.ErrInvalidInput)
	}
	return text, nil
}

// writeFinal exports the final (or last partial) document.
func writeFinal(cmd *cobra.Command, svc driving.ResearchService, outcome *driving.ResearchOutcome, format string) error {
	if outcome.Result == nil || outcome.Result.Final == nil {
		return nil
	}

	data, err := svc.Export(outcome.Result.Final, format)
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
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}

func printSummary(w io.Writer, outcome *driving.ResearchOutcome) {
	if outcome.Run != nil {
		fmt.Fprintf(w, "Run %s\n", outcome.Run.ID)
	}
	if r := outcome.Result; r != nil {
		fmt.Fprintf(w, "  Stop reason: %s\n", r.StopReason)
		fmt.Fprintf(w, "  Iterations:  %d\n", len(r.Iterations))
		fmt.Fprintf(w, "  Versions:    %d\n", len(r.History))
		fmt.Fprintf(w, "  Cost:        $%.4f\n", r.Cost)
		fmt.Fprintf(w, "  Calls:       %d llm, %d research\n", r.LLMCalls, r.ResearchCalls)
	}
}

// progressPrinter writes loop events as plain text lines.
type progressPrinter struct {
	w   io.Writer
	req domain.RunRequest
}

// Ensure progressPrinter implements the interface.
var _ driving.RunObserver = (*progressPrinter)(nil)

func newProgressPrinter(w io.Writer, req domain.RunRequest) *progressPrinter {
	return &progressPrinter{w: w, req: req}
}

func (p *progressPrinter) OnVersion(seq int, step domain.Step, doc *domain.Document) {
	sections := 0
	version := 0
	if doc != nil {
		sections = len(doc.Sections)
		version = doc.Version
	}
	fmt.Fprintf(p.w, "[%d] %-8s v%d, %d sections\n", seq, step, version, sections)
}

func (p *progressPrinter) OnIteration(report domain.IterationReport) {
	fmt.Fprintf(p.w, "Iteration %d/%d: %s (%d issues, $%.4f)\n",
		report.Iteration, p.req.MaxIterations, report.Decision, len(report.Issues), report.Cost)
	for _, s := range report.Scores {
		marker := " "
		if s.Score < p.req.ConfidenceThreshold {
			marker = "!"
		}
		fmt.Fprintf(p.w, "  %s %.2f  %s\n", marker, s.Score, s.Title)
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(p.w, "  - %s\n", issue)
	}
	if report.DeepResearched {
		fmt.Fprintln(p.w, "  deep research pass applied")
	}
	for _, q := range report.Questions {
		fmt.Fprintf(p.w, "  ? %s\n", q)
	}
}
