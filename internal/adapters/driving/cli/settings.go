package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

var errSettingsNotConfigured = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the LLM provider, research backend, loop and cost settings.

API keys may also be supplied through the environment (OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY, PERPLEXITY_API_KEY) or a .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long: `Configure the LLM provider used to structure outlines and rewrite documents.

Without --provider an interactive prompt is shown.`,
	RunE: runSettingsLLM,
}

var settingsResearchCmd = &cobra.Command{
	Use:   "research",
	Short: "Configure research backend",
	Long: `Configure the grounded research backend.

Available backends:
  perplexity - Perplexity search-grounded answers with source URLs
  llm        - Ask the configured LLM for sourced facts (ungrounded)

Without --backend an interactive prompt is shown.`,
	RunE: runSettingsResearch,
}

var settingsLoopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Configure the research loop",
	Long: `Set the iteration ceiling, confidence threshold and termination policy.

Termination policies:
  threshold - stop when every section meets the threshold and no issues remain
  metrics   - also stop on stalled progress or sufficient topic coverage`,
	RunE: runSettingsLoop,
}

var settingsCostCmd = &cobra.Command{
	Use:   "cost",
	Short: "Configure the run cost budget",
	RunE:  runSettingsCost,
}

func init() {
	settingsLLMCmd.Flags().String("provider", "", "Provider (ollama, openai, anthropic, gemini)")
	settingsLLMCmd.Flags().String("model", "", "Model name (default per provider)")
	settingsLLMCmd.Flags().String("api-key", "", "API key for cloud providers")
	settingsLLMCmd.Flags().Bool("skip-validation", false, "Save without contacting the provider")

	settingsResearchCmd.Flags().String("backend", "", "Backend (perplexity, llm)")
	settingsResearchCmd.Flags().String("model", "", "Model name")
	settingsResearchCmd.Flags().String("api-key", "", "API key for perplexity")
	settingsResearchCmd.Flags().Bool("skip-validation", false, "Save without contacting the backend")

	settingsLoopCmd.Flags().Int("max-iterations", 0, "Iteration ceiling (1-10)")
	settingsLoopCmd.Flags().Float64("threshold", 0, "Confidence threshold in [0,1]")
	settingsLoopCmd.Flags().String("termination", "", "Termination policy (threshold, metrics)")
	settingsLoopCmd.Flags().Float64("min-new-info-rate", 0, "Stalled iteration cutoff, percent (metrics policy)")
	settingsLoopCmd.Flags().Float64("coverage-target", 0, "Topic coverage target, percent (metrics policy)")
	settingsLoopCmd.Flags().Bool("deep-research", false, "Research the rewrite's open questions each iteration")
	settingsLoopCmd.Flags().Int("max-batch-size", 0, "Questions researched per deep pass (1-10)")

	settingsCostCmd.Flags().Float64("budget", 0, "Maximum spend per run in USD (0 disables the limit)")
	settingsCostCmd.MarkFlagRequired("budget") //nolint:errcheck // flag is registered above

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsResearchCmd)
	settingsCmd.AddCommand(settingsLoopCmd)
	settingsCmd.AddCommand(settingsCostCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", orDash(settings.LLM.Model))
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeAPIKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Research]")
	cmd.Printf("  Backend: %s\n", settings.Research.Backend.Description())
	if settings.Research.Backend == domain.ResearchBackendPerplexity {
		cmd.Printf("  Model: %s\n", orDash(settings.Research.Model))
		cmd.Printf("  API Key: %s\n", describeAPIKey(settings.Research.APIKey))
		cmd.Printf("  Requests/min: %d\n", settings.Research.RequestsPerMinute)
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Research.IsConfigured()))
	cmd.Println()

	cmd.Println("[Loop]")
	cmd.Printf("  Max iterations: %d\n", settings.Loop.MaxIterations)
	cmd.Printf("  Confidence threshold: %.2f\n", settings.Loop.ConfidenceThreshold)
	cmd.Printf("  Termination: %s\n", settings.Loop.Termination)
	if settings.Loop.Termination == domain.TerminationMetrics {
		cmd.Printf("  Min new info rate: %.1f%%\n", settings.Loop.MinNewInfoRate)
		cmd.Printf("  Coverage target: %.1f%%\n", settings.Loop.CoverageTarget)
	}
	if settings.Loop.DeepResearch {
		cmd.Printf("  Deep research: on, up to %d questions\n", settings.Loop.MaxBatchSize)
	} else {
		cmd.Println("  Deep research: off")
	}
	cmd.Println()

	cmd.Println("[Cost]")
	if settings.Cost.MaxTotalCost > 0 {
		cmd.Printf("  Budget: $%.2f per run\n", settings.Cost.MaxTotalCost)
	} else {
		cmd.Println("  Budget: unlimited")
	}
	cmd.Printf("  Research: $%.4f/1K tokens + $%.4f/search\n",
		settings.Cost.ResearchCostPer1KTokens, settings.Cost.ResearchCostPerSearch)
	cmd.Printf("  LLM: $%.4f/1K input, $%.4f/1K output\n",
		settings.Cost.LLMInputCostPer1K, settings.Cost.LLMOutputCostPer1K)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	provider, _ := cmd.Flags().GetString("provider") //nolint:errcheck // flag is registered
	if provider == "" {
		return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
	}

	model, _ := cmd.Flags().GetString("model")    //nolint:errcheck // flag is registered
	apiKey, _ := cmd.Flags().GetString("api-key") //nolint:errcheck // flag is registered
	selected := domain.AIProvider(strings.ToLower(provider))
	if !selected.IsValid() {
		return fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidInput, provider)
	}
	return saveLLMProvider(cmd, selected, model, apiKey)
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	return saveLLMProvider(cmd, selected, model, apiKey)
}

func saveLLMProvider(cmd *cobra.Command, provider domain.AIProvider, model, apiKey string) error {
	if err := settingsService.SetLLMProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	if skip, _ := cmd.Flags().GetBool("skip-validation"); !skip { //nolint:errcheck // flag is registered
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateLLMConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("LLM configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	cmd.Printf("LLM provider configured: %s (%s)\n", provider.Description(), model)
	return nil
}

func runSettingsResearch(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	backend, _ := cmd.Flags().GetString("backend") //nolint:errcheck // flag is registered
	if backend == "" {
		return configureResearchBackend(cmd, bufio.NewReader(cmd.InOrStdin()))
	}

	model, _ := cmd.Flags().GetString("model")    //nolint:errcheck // flag is registered
	apiKey, _ := cmd.Flags().GetString("api-key") //nolint:errcheck // flag is registered
	selected := domain.ResearchBackend(strings.ToLower(backend))
	if !selected.IsValid() {
		return fmt.Errorf("%w: unknown research backend %q", domain.ErrInvalidInput, backend)
	}
	return saveResearchBackend(cmd, selected, model, apiKey)
}

func configureResearchBackend(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Research Backend")
	backends := domain.AllResearchBackends()
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(backends), 1)
	selected := backends[idx-1]

	var model, apiKey string
	if selected == domain.ResearchBackendPerplexity {
		defaultModel := domain.DefaultAppSettings().Research.Model
		cmd.Printf("Enter model name [%s]: ", defaultModel)
		model = readLine(reader)

		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this backend")
		}
	}

	return saveResearchBackend(cmd, selected, model, apiKey)
}

func saveResearchBackend(cmd *cobra.Command, backend domain.ResearchBackend, model, apiKey string) error {
	if err := settingsService.SetResearchBackend(backend, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure research backend: %w", err)
	}

	if skip, _ := cmd.Flags().GetBool("skip-validation"); !skip { //nolint:errcheck // flag is registered
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateResearchConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("research configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Research backend configured: %s\n", backend.Description())
	return nil
}

func runSettingsLoop(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	loop := settings.Loop

	flags := cmd.Flags()
	if !flags.Changed("max-iterations") && !flags.Changed("threshold") && !flags.Changed("termination") &&
		!flags.Changed("min-new-info-rate") && !flags.Changed("coverage-target") &&
		!flags.Changed("deep-research") && !flags.Changed("max-batch-size") {
		return errors.New("nothing to change: pass at least one flag (see --help)")
	}
	if flags.Changed("max-iterations") {
		loop.MaxIterations, _ = flags.GetInt("max-iterations") //nolint:errcheck // flag is registered
	}
	if flags.Changed("threshold") {
		loop.ConfidenceThreshold, _ = flags.GetFloat64("threshold") //nolint:errcheck // flag is registered
	}
	if flags.Changed("termination") {
		mode, _ := flags.GetString("termination") //nolint:errcheck // flag is registered
		loop.Termination = domain.TerminationMode(strings.ToLower(mode))
	}
	if flags.Changed("min-new-info-rate") {
		loop.MinNewInfoRate, _ = flags.GetFloat64("min-new-info-rate") //nolint:errcheck // flag is registered
	}
	if flags.Changed("coverage-target") {
		loop.CoverageTarget, _ = flags.GetFloat64("coverage-target") //nolint:errcheck // flag is registered
	}
	if flags.Changed("deep-research") {
		loop.DeepResearch, _ = flags.GetBool("deep-research") //nolint:errcheck // flag is registered
	}
	if flags.Changed("max-batch-size") {
		loop.MaxBatchSize, _ = flags.GetInt("max-batch-size") //nolint:errcheck // flag is registered
		if loop.MaxBatchSize == 0 {
			return fmt.Errorf("%w: max batch size must be between 1 and %d", domain.ErrInvalidInput, domain.MaxAllowedBatchSize)
		}
	}

	if err := settingsService.SetLoop(loop); err != nil {
		return fmt.Errorf("failed to update loop settings: %w", err)
	}

	cmd.Printf("Loop settings updated: %d iterations, threshold %.2f, %s termination\n",
		loop.MaxIterations, loop.ConfidenceThreshold, loop.Termination)
	return nil
}

func runSettingsCost(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	budget, _ := cmd.Flags().GetFloat64("budget") //nolint:errcheck // flag is registered
	if err := settingsService.SetBudget(budget); err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}

	if budget == 0 {
		cmd.Println("Cost budget disabled.")
	} else {
		cmd.Printf("Cost budget set to $%.2f per run.\n", budget)
	}
	return nil
}

// Helper functions.

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func describeAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when input is an interactive terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
