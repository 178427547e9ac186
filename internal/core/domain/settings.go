package domain

const unknownDescription = "Unknown"

// AIProvider identifies a generative rewrite provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is the Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// ResearchBackend identifies a grounded research provider.
type ResearchBackend string

// Available research backends.
const (
	// ResearchBackendPerplexity is the Perplexity search-grounded API.
	ResearchBackendPerplexity ResearchBackend = "perplexity"

	// ResearchBackendLLM asks the configured LLM for sourced facts.
	// It is ungrounded and intended for offline use and testing.
	ResearchBackendLLM ResearchBackend = "llm"
)

// IsValid returns true if the backend is recognised.
func (b ResearchBackend) IsValid() bool {
	return b == ResearchBackendPerplexity || b == ResearchBackendLLM
}

// String returns the string representation.
func (b ResearchBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b ResearchBackend) Description() string {
	switch b {
	case ResearchBackendPerplexity:
		return "Perplexity (search grounded)"
	case ResearchBackendLLM:
		return "LLM (ungrounded fallback)"
	default:
		return unknownDescription
	}
}

// TerminationMode selects the termination policy.
type TerminationMode string

// Available termination modes.
const (
	// TerminationThreshold stops when verification is clean and every
	// section meets the confidence threshold.
	TerminationThreshold TerminationMode = "threshold"

	// TerminationMetrics additionally stops on stalled progress or
	// sufficient topic coverage.
	TerminationMetrics TerminationMode = "metrics"
)

// IsValid returns true if the mode is recognised.
func (m TerminationMode) IsValid() bool {
	return m == TerminationThreshold || m == TerminationMetrics
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or proxies).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Temperature is the sampling temperature for rewrites.
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ResearchSettings holds grounded research provider configuration.
type ResearchSettings struct {
	Backend ResearchBackend
	Model   string
	BaseURL string
	APIKey  string

	// RequestsPerMinute bounds outbound research calls.
	RequestsPerMinute int
}

// IsConfigured returns true if the research backend is set up.
func (r ResearchSettings) IsConfigured() bool {
	switch r.Backend {
	case ResearchBackendPerplexity:
		return r.APIKey != ""
	case ResearchBackendLLM:
		return true
	default:
		return false
	}
}

// LoopSettings configures the research/enhancement loop.
type LoopSettings struct {
	// MaxIterations is the hard iteration ceiling (1-10).
	MaxIterations int

	// ConfidenceThreshold is the per-section score required to terminate.
	ConfidenceThreshold float64

	// Termination selects the termination policy.
	Termination TerminationMode

	// MinNewInfoRate is the new information percentage below which an
	// iteration counts as stalled (metrics mode).
	MinNewInfoRate float64

	// CoverageTarget is the topic coverage percentage that ends a run
	// with no open issues (metrics mode).
	CoverageTarget float64

	// DeepResearch runs the rewrite's research questions as extra queries
	// followed by a second rewrite, within the same iteration.
	DeepResearch bool

	// MaxBatchSize caps the questions researched per deep pass (1-10).
	MaxBatchSize int
}

// CostSettings configures cost accounting.
type CostSettings struct {
	// MaxTotalCost is the run budget in USD. Zero disables the limit.
	MaxTotalCost float64

	ResearchCostPer1KTokens float64
	ResearchCostPerSearch   float64
	LLMInputCostPer1K       float64
	LLMOutputCostPer1K      float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	LLM      LLMSettings
	Research ResearchSettings
	Loop     LoopSettings
	Cost     CostSettings
}

// Loop and cost defaults.
const (
	DefaultMaxIterations       = 3
	MaxAllowedIterations       = 10
	DefaultConfidenceThreshold = 0.8
	DefaultTemperature         = 0.2
	DefaultMinNewInfoRate      = 10.0
	DefaultCoverageTarget      = 90.0
	DefaultMaxBatchSize        = 5
	MaxAllowedBatchSize        = 10
	DefaultMaxTotalCost        = 5.0
	DefaultRequestsPerMinute   = 20
)

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured; users set it up via `strata settings llm`.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Temperature: DefaultTemperature,
		},
		Research: ResearchSettings{
			Backend:           ResearchBackendPerplexity,
			Model:             "sonar",
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Loop: LoopSettings{
			MaxIterations:       DefaultMaxIterations,
			ConfidenceThreshold: DefaultConfidenceThreshold,
			Termination:         TerminationThreshold,
			MinNewInfoRate:      DefaultMinNewInfoRate,
			CoverageTarget:      DefaultCoverageTarget,
			MaxBatchSize:        DefaultMaxBatchSize,
		},
		Cost: CostSettings{
			MaxTotalCost:            DefaultMaxTotalCost,
			ResearchCostPer1KTokens: 0.001,
			ResearchCostPerSearch:   0.005,
			LLMInputCostPer1K:       0.003,
			LLMOutputCostPer1K:      0.015,
		},
	}
}

// AllLLMProviders returns providers that support rewrites.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// AllResearchBackends returns the available research backends.
func AllResearchBackends() []ResearchBackend {
	return []ResearchBackend{ResearchBackendPerplexity, ResearchBackendLLM}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-1.5-flash",
	}
}
