// Package ai provides factory functions for creating LLM and research adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/strata-cli/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/strata-cli/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/strata-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/strata-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/research/llmgrounded"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/research/perplexity"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the services a run needs.
type InitResult struct {
	LLMService       driven.LLMService
	ResearchProvider driven.ResearchProvider
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.ResearchProvider != nil {
		r.ResearchProvider.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise creates and validates the LLM and research provider from
// settings. Both are required to start a run.
func Initialise(settings *domain.AppSettings, prompts driven.PromptStore) (*InitResult, error) {
	llm, err := CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		return nil, err
	}
	if llm == nil {
		return nil, fmt.Errorf("%w: no provider configured. Run 'strata settings llm' to fix",
			domain.ErrLLMUnavailable)
	}

	research, err := CreateAndValidateResearchProvider(&settings.Research, llm, prompts)
	if err != nil {
		llm.Close()
		return nil, err
	}
	return &InitResult{LLMService: llm, ResearchProvider: research}, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'strata settings llm' to fix",
			domain.ErrLLMUnavailable, err)
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'strata settings llm' to fix",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateResearchProvider creates a research provider and
// validates connectivity. The LLM backend reuses llm.
func CreateAndValidateResearchProvider(
	settings *domain.ResearchSettings, llm driven.LLMService, prompts driven.PromptStore,
) (driven.ResearchProvider, error) {
	provider, err := CreateResearchProvider(settings, llm, prompts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'strata settings research' to fix",
			domain.ErrResearchUnavailable, err)
	}

	// The LLM backend was validated with the LLM itself.
	if settings.Backend == domain.ResearchBackendLLM {
		return provider, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'strata settings research' to fix",
			domain.ErrResearchUnavailable, err)
	}
	return provider, nil
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// This is intended for use in the settings commands to validate credentials on configuration.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateResearchConfig validates a research configuration. The LLM
// backend is validated through the LLM settings it depends on.
func ValidateResearchConfig(settings *domain.ResearchSettings, llm *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	if settings.Backend == domain.ResearchBackendLLM {
		if llm == nil || !llm.IsConfigured() {
			return fmt.Errorf("llm research backend requires a configured LLM provider")
		}
		return ValidateLLMConfig(llm)
	}

	provider, err := CreateResearchProvider(settings, nil, nil)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return provider.Ping(ctx)
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	case domain.AIProviderGemini:
		return createGeminiLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateResearchProvider creates the research provider for the backend.
// The LLM backend requires llm; prompts may be nil.
func CreateResearchProvider(
	settings *domain.ResearchSettings, llm driven.LLMService, prompts driven.PromptStore,
) (driven.ResearchProvider, error) {
	if settings == nil {
		return nil, fmt.Errorf("research settings are required")
	}

	switch settings.Backend {
	case domain.ResearchBackendPerplexity:
		client, err := perplexity.NewClient(perplexity.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			RequestsPerMinute: settings.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	case domain.ResearchBackendLLM:
		if llm == nil {
			return nil, fmt.Errorf("llm research backend requires a configured LLM provider")
		}
		p := llmgrounded.New(llm)
		if prompts != nil {
			p.SetPromptStore(prompts)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported research backend: %s", settings.Backend)
	}
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// createGeminiLLM creates a Gemini LLM service.
func createGeminiLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := geminillm.NewLLMService(context.Background(), geminillm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
