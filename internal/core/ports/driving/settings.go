package driving

import "github.com/custodia-labs/strata-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetLLMProvider configures the generative rewrite provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetResearchBackend configures the grounded research provider.
	SetResearchBackend(backend domain.ResearchBackend, model, apiKey string) error

	// SetLoop updates loop settings.
	SetLoop(loop domain.LoopSettings) error

	// SetBudget updates the run cost budget.
	SetBudget(maxTotalCost float64) error

	// Validate checks the settings are sufficient to start a run.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error

	// ValidateResearchConfig validates the current research configuration.
	ValidateResearchConfig() error
}
