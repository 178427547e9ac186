// Package llmgrounded implements research by asking the configured LLM for
// sourced facts. Sources are whatever the model reports and are not verified.
package llmgrounded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.ResearchProvider = (*Provider)(nil)

// FallbackSource attributes answers that could not be parsed as JSON.
const FallbackSource = "llm"

const defaultPrompt = "List factual statements about the following topic. " +
	"Respond only with a JSON array of objects with fields " +
	`"content" (one fact), "source" (a URL or publication) and "reliability" (0.0-1.0). ` +
	"Topic: {query}"

// Provider asks an LLM for sourced facts.
type Provider struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// New creates an LLM-backed research provider.
func New(llm driven.LLMService) *Provider {
	return &Provider{llm: llm}
}

// SetPromptStore sets the store the grounded_research template is loaded from.
func (p *Provider) SetPromptStore(store driven.PromptStore) {
	p.prompts = store
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "llm/" + p.llm.ModelName()
}

// Research prompts the LLM and parses its answer.
func (p *Provider) Research(ctx context.Context, query string) ([]domain.ResultItem, error) {
	prompt := strings.ReplaceAll(p.template(), "{query}", query)
	answer, err := p.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleUser, Content: prompt},
	}, driven.ChatOptions{Temperature: domain.DefaultTemperature})
	if err != nil {
		return nil, fmt.Errorf("llm research: %w", err)
	}
	return parseItems(answer), nil
}

func (p *Provider) template() string {
	if p.prompts == nil {
		return defaultPrompt
	}
	tmpl, err := p.prompts.Load(driven.PromptGroundedResearch)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		return defaultPrompt
	}
	return tmpl
}

type item struct {
	Content     string   `json:"content"`
	Source      string   `json:"source"`
	Reliability *float64 `json:"reliability"`
}

// parseItems decodes a JSON array, tolerating a surrounding code fence or
// prose. Anything else becomes a single item attributed to the LLM.
func parseItems(answer string) []domain.ResultItem {
	text := strings.TrimSpace(answer)
	if text == "" {
		return nil
	}

	var raw []item
	if body, ok := jsonArray(text); ok && json.Unmarshal([]byte(body), &raw) == nil {
		items := make([]domain.ResultItem, 0, len(raw))
		for _, r := range raw {
			if strings.TrimSpace(r.Content) == "" {
				continue
			}
			items = append(items, domain.ResultItem{
				Content:     strings.TrimSpace(r.Content),
				Source:      strings.TrimSpace(r.Source),
				Reliability: r.Reliability,
			})
		}
		return items
	}

	logger.Debug("LLM research answer is not a JSON array, using it as a single item")
	return []domain.ResultItem{{Content: text, Source: FallbackSource}}
}

func jsonArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Ping checks the underlying LLM.
func (p *Provider) Ping(ctx context.Context) error {
	if p.llm == nil {
		return errors.New("llm research: no LLM configured")
	}
	return p.llm.Ping(ctx)
}

// Close is a no-op; the LLM service is owned by the caller.
func (p *Provider) Close() error {
	return nil
}
