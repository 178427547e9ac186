package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Ensure metered decorators implement the ports.
var (
	_ driven.LLMService       = (*MeteredLLM)(nil)
	_ driven.ResearchProvider = (*MeteredResearch)(nil)
)

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// CostTracker accumulates spend across provider calls and refuses calls
// that would take the total over the budget. A zero budget is unlimited.
type CostTracker struct {
	mu    sync.Mutex
	rates domain.CostSettings
	spent float64
	calls map[string]int
}

// NewCostTracker creates a tracker with the given rates and budget.
func NewCostTracker(rates domain.CostSettings) *CostTracker {
	return &CostTracker{rates: rates, calls: make(map[string]int)}
}

// Reserve returns domain.ErrCostLimitExceeded if spending estimate more
// would exceed the budget.
func (t *CostTracker) Reserve(estimate float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rates.MaxTotalCost > 0 && t.spent+estimate > t.rates.MaxTotalCost {
		return fmt.Errorf("%w: $%.4f spent, next call estimated at $%.4f, budget $%.2f",
			domain.ErrCostLimitExceeded, t.spent, estimate, t.rates.MaxTotalCost)
	}
	return nil
}

// Record adds the actual cost of a completed call.
func (t *CostTracker) Record(kind string, amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent += amount
	t.calls[kind]++
	logger.Debug("%s call cost $%.4f, total $%.4f", kind, amount, t.spent)
}

// Spent returns the total recorded cost.
func (t *CostTracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Calls returns the number of recorded calls of a kind.
func (t *CostTracker) Calls(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[kind]
}

// LLMCost prices a rewrite call from its input and output token counts.
func (t *CostTracker) LLMCost(inTokens, outTokens int) float64 {
	return float64(inTokens)/1000*t.rates.LLMInputCostPer1K +
		float64(outTokens)/1000*t.rates.LLMOutputCostPer1K
}

// ResearchCost prices a research call from its token count.
func (t *CostTracker) ResearchCost(tokens int) float64 {
	return float64(tokens)/1000*t.rates.ResearchCostPer1KTokens + t.rates.ResearchCostPerSearch
}

// Call kinds recorded by the metered decorators.
const (
	CallKindLLM      = "llm"
	CallKindResearch = "research"
)

// MeteredLLM charges every call on an LLMService to a CostTracker.
type MeteredLLM struct {
	driven.LLMService
	tracker *CostTracker
}

// NewMeteredLLM wraps llm.
func NewMeteredLLM(llm driven.LLMService, tracker *CostTracker) *MeteredLLM {
	return &MeteredLLM{LLMService: llm, tracker: tracker}
}

// Generate checks the budget, calls the wrapped service and records the cost.
func (m *MeteredLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	in := EstimateTokens(prompt)
	if err := m.tracker.Reserve(m.tracker.LLMCost(in, expectedOutput(in, opts.MaxTokens))); err != nil {
		return "", err
	}
	out, err := m.LLMService.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	m.tracker.Record(CallKindLLM, m.tracker.LLMCost(in, EstimateTokens(out)))
	return out, nil
}

// Chat checks the budget, calls the wrapped service and records the cost.
func (m *MeteredLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	in := 0
	for _, msg := range messages {
		in += EstimateTokens(msg.Content)
	}
	if err := m.tracker.Reserve(m.tracker.LLMCost(in, expectedOutput(in, opts.MaxTokens))); err != nil {
		return "", err
	}
	out, err := m.LLMService.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	m.tracker.Record(CallKindLLM, m.tracker.LLMCost(in, EstimateTokens(out)))
	return out, nil
}

// expectedOutput assumes a rewrite is about as long as its input, capped
// by maxTokens when set.
func expectedOutput(in, maxTokens int) int {
	if maxTokens > 0 && maxTokens < in {
		return maxTokens
	}
	return in
}

// MeteredResearch charges every research call to a CostTracker.
type MeteredResearch struct {
	driven.ResearchProvider
	tracker *CostTracker
}

// NewMeteredResearch wraps provider.
func NewMeteredResearch(provider driven.ResearchProvider, tracker *CostTracker) *MeteredResearch {
	return &MeteredResearch{ResearchProvider: provider, tracker: tracker}
}

// Research checks the budget, calls the wrapped provider and records the cost.
func (m *MeteredResearch) Research(ctx context.Context, query string) ([]domain.ResultItem, error) {
	in := EstimateTokens(query)
	if err := m.tracker.Reserve(m.tracker.ResearchCost(in)); err != nil {
		return nil, err
	}
	items, err := m.ResearchProvider.Research(ctx, query)
	if err != nil {
		return nil, err
	}
	tokens := in
	for _, item := range items {
		tokens += EstimateTokens(item.Content)
	}
	m.tracker.Record(CallKindResearch, m.tracker.ResearchCost(tokens))
	return items, nil
}
