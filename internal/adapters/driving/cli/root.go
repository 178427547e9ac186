// Package cli provides the cobra command tree for the strata binary.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// ResearchFactory builds the research service on demand. Providers are only
// created (and pinged) by commands that run research. The returned func
// releases provider resources.
type ResearchFactory func() (driving.ResearchService, func(), error)

// Watcher reloads external configuration while a long-running command is up.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// Exporter renders documents in the supported formats without needing
// any provider.
type Exporter interface {
	Export(doc *domain.Document, format string) ([]byte, error)
	Formats() []string
}

// Services holds the driving ports injected by the entry point.
type Services struct {
	Settings driving.SettingsService
	History  driving.HistoryService
	Research ResearchFactory
	Exporter Exporter

	// PromptWatcher is optional.
	PromptWatcher Watcher
}

var (
	settingsService driving.SettingsService
	historyService  driving.HistoryService
	researchFactory ResearchFactory
	exporter        Exporter
	promptWatcher   Watcher
)

var errResearchNotConfigured = errors.New("research service not configured")

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Iteratively research an outline into a cited document",
	Long: `strata turns an outline into a researched document.

Each iteration researches every section against a grounded search provider,
rewrites the document with an LLM and verifies it. The loop stops when every
section is confident and no issues remain, or when the iteration ceiling or
cost budget is reached. Every version is kept in the run history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose") //nolint:errcheck // flag is registered below
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log loop progress to stderr")
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	historyService = s.History
	researchFactory = s.Research
	exporter = s.Exporter
	promptWatcher = s.PromptWatcher
}

// SetVersion sets the version reported by `strata version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openResearch builds the research service through the injected factory.
func openResearch() (driving.ResearchService, func(), error) {
	if researchFactory == nil {
		return nil, nil, errResearchNotConfigured
	}
	svc, closeFn, err := researchFactory()
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return svc, closeFn, nil
}
