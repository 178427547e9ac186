package driven

import "github.com/custodia-labs/strata-cli/internal/core/domain"

// AIConfigValidator validates provider configurations by testing
// connectivity to the underlying services.
type AIConfigValidator interface {
	// ValidateLLM validates an LLM configuration by pinging the provider.
	// Returns nil if configuration is valid or not configured.
	ValidateLLM(config *domain.LLMSettings) error

	// ValidateResearch validates a research configuration.
	ValidateResearch(config *domain.ResearchSettings, llm *domain.LLMSettings) error
}
