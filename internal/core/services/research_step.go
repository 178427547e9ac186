package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// AdditionalResearchHeader delimits facts appended by a research step.
const AdditionalResearchHeader = "Additional Research:"

// structuralLine matches provider text the interchange parser would read as
// a heading or a confidence line.
var structuralLine = regexp.MustCompile(`(?i)^(#{1,6}(\s|$)|\**\s*confidence score\s*\**\s*:)`)

// ResearchStep grounds each top-level section with facts from a research
// provider. Subsections are not researched.
type ResearchStep struct {
	provider driven.ResearchProvider
	prompts  driven.PromptStore
}

// NewResearchStep creates a research step. prompts may be nil.
func NewResearchStep(provider driven.ResearchProvider, prompts driven.PromptStore) *ResearchStep {
	return &ResearchStep{provider: provider, prompts: prompts}
}

// Research returns a copy of doc with version+1 in which every top-level
// section has the provider's facts appended to its content, the new
// citations appended, and its confidence recomputed over all citations.
// The input document is never modified.
func (s *ResearchStep) Research(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if s.provider == nil {
		return nil, domain.ErrResearchUnavailable
	}

	logger.Section("Research Step")
	out := doc.Clone()
	out.Version = doc.Version + 1

	tmpl := loadPrompt(s.prompts, driven.PromptResearchQuery)
	for i := range out.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		section := &out.Sections[i]
		query := fillTemplate(tmpl, map[string]string{
			"section":  section.Title,
			"document": out.Title,
		})
		logger.Debug("Researching section %d/%d %q", i+1, len(out.Sections), section.Title)

		items, err := s.provider.Research(ctx, query)
		if err != nil {
			return nil, classifyProviderError(fmt.Sprintf("research section %q", section.Title), err)
		}

		facts, cites := ExtractFacts(items)
		section.Content = appendFacts(section.Content, facts)
		section.Citations = append(section.Citations, cites...)
		section.ConfidenceScore = ConfidenceScore(section.Citations)
		logger.Debug("Section %q: %d new facts, %d citations, confidence %.2f",
			section.Title, len(facts), len(section.Citations), section.ConfidenceScore)
	}

	logger.Info("Research produced version %d", out.Version)
	return out, nil
}

// appendFacts adds a delimited block listing facts after the existing
// content. Empty facts are skipped; no facts leaves content unchanged.
func appendFacts(content string, facts []string) string {
	var b strings.Builder
	for _, f := range facts {
		if f == "" {
			continue
		}
		for i, line := range strings.Split(f, "\n") {
			line = strings.TrimRight(line, " \t")
			switch {
			case i == 0:
				b.WriteString("- ")
				b.WriteString(line)
			case line == "":
				b.WriteString("\n")
			default:
				b.WriteString("\n  ")
				b.WriteString(escapeStructure(line))
			}
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return content
	}
	block := AdditionalResearchHeader + "\n" + strings.TrimRight(b.String(), "\n")
	if strings.TrimSpace(content) == "" {
		return block
	}
	return content + "\n\n" + block
}

// escapeStructure backslash-escapes a fact line that would otherwise open a
// section or set a score once the document is serialized.
func escapeStructure(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if !structuralLine.MatchString(trimmed) {
		return line
	}
	return line[:len(line)-len(trimmed)] + `\` + trimmed
}

// classifyProviderError passes cost-limit stops and cancellation through
// unchanged and marks anything else as a provider failure.
func classifyProviderError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrCostLimitExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrProviderFailure):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderFailure, err)
	}
}
