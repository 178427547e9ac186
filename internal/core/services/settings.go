package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTemperature    = "llm.temperature"
	keyResearchBackend   = "research.backend"
	keyResearchModel     = "research.model"
	keyResearchBaseURL   = "research.base_url"
	keyResearchAPIKey    = "research.api_key"
	keyResearchRPM       = "research.requests_per_minute"
	keyLoopMaxIterations = "loop.max_iterations"
	keyLoopThreshold     = "loop.confidence_threshold"
	keyLoopTermination   = "loop.termination"
	keyLoopMinNewInfo    = "loop.min_new_info_rate"
	keyLoopCoverage      = "loop.coverage_target"
	keyLoopDeepResearch  = "loop.deep_research"
	keyLoopBatchSize     = "loop.max_batch_size"
	keyCostMax           = "cost.max_total"
	keyCostResearch1K    = "cost.research_per_1k_tokens"
	keyCostResearchCall  = "cost.research_per_search"
	keyCostLLMInput1K    = "cost.llm_input_per_1k_tokens"
	keyCostLLMOutput1K   = "cost.llm_output_per_1k_tokens"
)

// Environment variables that override stored settings.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvLLMProvider     = "STRATA_LLM_PROVIDER"
	EnvLLMModel        = "STRATA_LLM_MODEL"
	EnvResearchBackend = "STRATA_RESEARCH_BACKEND"
	EnvMaxCost         = "STRATA_MAX_COST"
	EnvPerplexityKey   = "PERPLEXITY_API_KEY"
	EnvPerplexityModel = "PERPLEXITY_MODEL"
)

// providerKeyEnv maps cloud providers to their conventional API key variable.
var providerKeyEnv = map[domain.AIProvider][]string{
	domain.AIProviderAnthropic: {"ANTHROPIC_API_KEY"},
	domain.AIProviderOpenAI:    {"OPENAI_API_KEY"},
	domain.AIProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup. Passing nil disables
// environment overrides.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Get retrieves current application settings: defaults, then the config
// file, then environment overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.stored()
	s.applyEnv(settings)
	return settings, nil
}

func (s *SettingsService) stored() *domain.AppSettings {
	d := domain.DefaultAppSettings()
	return &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(d.LLM.Provider),
			Model:       s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
		},
		Research: domain.ResearchSettings{
			Backend:           s.getBackend(d.Research.Backend),
			Model:             s.getString(keyResearchModel, d.Research.Model),
			BaseURL:           s.configStore.GetString(keyResearchBaseURL),
			APIKey:            s.configStore.GetString(keyResearchAPIKey),
			RequestsPerMinute: s.getInt(keyResearchRPM, d.Research.RequestsPerMinute),
		},
		Loop: domain.LoopSettings{
			MaxIterations:       s.getInt(keyLoopMaxIterations, d.Loop.MaxIterations),
			ConfidenceThreshold: s.getFloat(keyLoopThreshold, d.Loop.ConfidenceThreshold),
			Termination:         s.getTermination(d.Loop.Termination),
			MinNewInfoRate:      s.getFloat(keyLoopMinNewInfo, d.Loop.MinNewInfoRate),
			CoverageTarget:      s.getFloat(keyLoopCoverage, d.Loop.CoverageTarget),
			DeepResearch:        s.configStore.GetBool(keyLoopDeepResearch),
			MaxBatchSize:        s.getInt(keyLoopBatchSize, d.Loop.MaxBatchSize),
		},
		Cost: domain.CostSettings{
			MaxTotalCost:            s.getFloat(keyCostMax, d.Cost.MaxTotalCost),
			ResearchCostPer1KTokens: s.getFloat(keyCostResearch1K, d.Cost.ResearchCostPer1KTokens),
			ResearchCostPerSearch:   s.getFloat(keyCostResearchCall, d.Cost.ResearchCostPerSearch),
			LLMInputCostPer1K:       s.getFloat(keyCostLLMInput1K, d.Cost.LLMInputCostPer1K),
			LLMOutputCostPer1K:      s.getFloat(keyCostLLMOutput1K, d.Cost.LLMOutputCostPer1K),
		},
	}
}

// applyEnv overlays environment variables. Provider API key variables only
// fill keys that are not stored.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if s.lookupEnv == nil {
		return
	}
	if v, ok := s.lookupEnv(EnvLLMProvider); ok && domain.AIProvider(v).IsValid() {
		if settings.LLM.Provider != domain.AIProvider(v) {
			settings.LLM.APIKey = ""
			settings.LLM.Model = domain.DefaultLLMModels()[domain.AIProvider(v)]
		}
		settings.LLM.Provider = domain.AIProvider(v)
	}
	if v, ok := s.lookupEnv(EnvLLMModel); ok && v != "" {
		settings.LLM.Model = v
	}
	if settings.LLM.APIKey == "" {
		for _, name := range providerKeyEnv[settings.LLM.Provider] {
			if v, ok := s.lookupEnv(name); ok && v != "" {
				settings.LLM.APIKey = v
				break
			}
		}
	}
	if v, ok := s.lookupEnv(EnvResearchBackend); ok && domain.ResearchBackend(v).IsValid() {
		settings.Research.Backend = domain.ResearchBackend(v)
	}
	if settings.Research.APIKey == "" {
		if v, ok := s.lookupEnv(EnvPerplexityKey); ok {
			settings.Research.APIKey = v
		}
	}
	if v, ok := s.lookupEnv(EnvPerplexityModel); ok && v != "" && settings.Research.Backend == domain.ResearchBackendPerplexity {
		settings.Research.Model = v
	}
	if v, ok := s.lookupEnv(EnvMaxCost); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			settings.Cost.MaxTotalCost = f
		}
	}
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyResearchBackend, settings.Research.Backend.String()},
		{keyResearchModel, settings.Research.Model},
		{keyResearchBaseURL, settings.Research.BaseURL},
		{keyResearchRPM, settings.Research.RequestsPerMinute},
		{keyLoopMaxIterations, settings.Loop.MaxIterations},
		{keyLoopThreshold, settings.Loop.ConfidenceThreshold},
		{keyLoopTermination, string(settings.Loop.Termination)},
		{keyLoopMinNewInfo, settings.Loop.MinNewInfoRate},
		{keyLoopCoverage, settings.Loop.CoverageTarget},
		{keyLoopDeepResearch, settings.Loop.DeepResearch},
		{keyLoopBatchSize, settings.Loop.MaxBatchSize},
		{keyCostMax, settings.Cost.MaxTotalCost},
		{keyCostResearch1K, settings.Cost.ResearchCostPer1KTokens},
		{keyCostResearchCall, settings.Cost.ResearchCostPerSearch},
		{keyCostLLMInput1K, settings.Cost.LLMInputCostPer1K},
		{keyCostLLMOutput1K, settings.Cost.LLMOutputCostPer1K},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when present so a key supplied through the
	// environment is never copied to disk by an unrelated change.
	if settings.LLM.APIKey != "" && s.configStore.GetString(keyLLMAPIKey) != settings.LLM.APIKey {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyLLMAPIKey, err)
		}
	}
	if settings.Research.APIKey != "" && s.configStore.GetString(keyResearchAPIKey) != settings.Research.APIKey {
		if err := s.configStore.Set(keyResearchAPIKey, settings.Research.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyResearchAPIKey, err)
		}
	}
	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings := s.stored()
	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey
	if err := s.Save(settings); err != nil {
		return err
	}
	if apiKey == "" {
		return s.configStore.Set(keyLLMAPIKey, "")
	}
	return nil
}

// SetResearchBackend configures the grounded research provider.
func (s *SettingsService) SetResearchBackend(backend domain.ResearchBackend, model, apiKey string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid research backend: %s", backend)
	}
	if backend == domain.ResearchBackendPerplexity && apiKey == "" {
		return fmt.Errorf("API key required for %s", backend)
	}

	settings := s.stored()
	settings.Research.Backend = backend
	switch {
	case model != "":
		settings.Research.Model = model
	case backend == domain.ResearchBackendPerplexity:
		settings.Research.Model = domain.DefaultAppSettings().Research.Model
	default:
		settings.Research.Model = ""
	}
	settings.Research.APIKey = apiKey
	return s.Save(settings)
}

// SetLoop updates loop settings. A zero MaxBatchSize means the default.
func (s *SettingsService) SetLoop(loop domain.LoopSettings) error {
	if loop.MaxBatchSize == 0 {
		loop.MaxBatchSize = domain.DefaultMaxBatchSize
	}
	if loop.MaxIterations < 1 || loop.MaxIterations > domain.MaxAllowedIterations {
		return fmt.Errorf("%w: max iterations must be between 1 and %d", domain.ErrInvalidInput, domain.MaxAllowedIterations)
	}
	if loop.ConfidenceThreshold < 0 || loop.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	if !loop.Termination.IsValid() {
		return fmt.Errorf("%w: termination must be %q or %q",
			domain.ErrInvalidInput, domain.TerminationThreshold, domain.TerminationMetrics)
	}
	if loop.MaxBatchSize < 1 || loop.MaxBatchSize > domain.MaxAllowedBatchSize {
		return fmt.Errorf("%w: max batch size must be between 1 and %d", domain.ErrInvalidInput, domain.MaxAllowedBatchSize)
	}

	settings := s.stored()
	settings.Loop = loop
	return s.Save(settings)
}

// SetBudget updates the run cost budget. Zero disables the limit.
func (s *SettingsService) SetBudget(maxTotalCost float64) error {
	if maxTotalCost < 0 {
		return fmt.Errorf("%w: budget must not be negative", domain.ErrInvalidInput)
	}
	settings := s.stored()
	settings.Cost.MaxTotalCost = maxTotalCost
	return s.Save(settings)
}

// Validate checks the settings are sufficient to start a run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: run 'strata settings llm' to configure a provider", domain.ErrLLMUnavailable)
	}
	if !settings.Research.IsConfigured() {
		return fmt.Errorf("%w: run 'strata settings research' to configure a backend", domain.ErrResearchUnavailable)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateResearchConfig validates the current research configuration.
func (s *SettingsService) ValidateResearchConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateResearch(&settings.Research, &settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyLLMProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.ResearchBackend) domain.ResearchBackend {
	backend := domain.ResearchBackend(s.configStore.GetString(keyResearchBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getTermination(defaultVal domain.TerminationMode) domain.TerminationMode {
	mode := domain.TerminationMode(s.configStore.GetString(keyLoopTermination))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}
