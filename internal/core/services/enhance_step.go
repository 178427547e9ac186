package services

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// EnhancementStep rewrites the whole document with the generative provider
// and re-parses the result into a new version.
type EnhancementStep struct {
	llm     driven.LLMService
	codec   driven.DocumentCodec
	prompts driven.PromptStore
	opts    driven.ChatOptions
}

// NewEnhancementStep creates an enhancement step. prompts may be nil.
func NewEnhancementStep(
	llm driven.LLMService,
	codec driven.DocumentCodec,
	prompts driven.PromptStore,
	opts driven.ChatOptions,
) *EnhancementStep {
	return &EnhancementStep{llm: llm, codec: codec, prompts: prompts, opts: opts}
}

// Enhance serializes doc, sends it with the enhancement instruction in a
// single call and parses the reply into a new document with version+1.
// The title is preserved and metadata copied. Section identity is not
// stable across a rewrite: sections are matched back to doc by title and
// keep their research evidence.
func (s *EnhancementStep) Enhance(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	out, _, err := s.EnhanceWithQuestions(ctx, doc)
	return out, err
}

// EnhanceWithQuestions is Enhance that also returns the research questions
// the rewrite raised. Question blocks are removed before parsing.
func (s *EnhancementStep) EnhanceWithQuestions(
	ctx context.Context, doc *domain.Document,
) (*domain.Document, []domain.ResearchQuestion, error) {
	if doc == nil {
		return nil, nil, domain.ErrInvalidInput
	}
	if s.llm == nil {
		return nil, nil, domain.ErrLLMUnavailable
	}

	logger.Section("Enhancement Step")
	text := s.codec.Serialize(doc)
	logger.Debug("Sending %d characters to %s", len(text), s.llm.ModelName())

	reply, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: loadPrompt(s.prompts, driven.PromptEnhanceSystem)},
		{Role: driven.RoleUser, Content: text},
	}, s.opts)
	if err != nil {
		return nil, nil, classifyProviderError("enhance document", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, nil, fmt.Errorf("enhance document: %w: empty rewrite", domain.ErrProviderFailure)
	}

	questions := ExtractResearchQuestions(reply)
	out := s.codec.Parse(stripCodeFence(stripQuestionBlocks(reply)))
	out.Title = doc.Title
	out.Version = doc.Version + 1
	out.Metadata = maps.Clone(doc.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]string)
	}
	carryEvidence(doc, out)

	logger.Info("Enhancement produced version %d with %d sections and %d research questions",
		out.Version, len(out.Sections), len(questions))
	return out, questions, nil
}

// carryEvidence restores citations and confidence from prev into sections
// of next that share a title, at any depth. Scores are never taken from the
// rewrite: a section without a match is scored from the citations it carries.
func carryEvidence(prev, next *domain.Document) {
	byTitle := make(map[string]*domain.Section)
	var index func(sections []domain.Section)
	index = func(sections []domain.Section) {
		for i := range sections {
			if _, seen := byTitle[sections[i].Title]; !seen {
				byTitle[sections[i].Title] = &sections[i]
			}
			index(sections[i].Subsections)
		}
	}
	index(prev.Sections)

	var restore func(sections []domain.Section)
	restore = func(sections []domain.Section) {
		for i := range sections {
			s := &sections[i]
			if old, ok := byTitle[s.Title]; ok {
				s.Citations = append([]domain.Citation(nil), old.Citations...)
				s.ConfidenceScore = old.ConfidenceScore
			} else {
				s.ConfidenceScore = ConfidenceScore(s.Citations)
			}
			restore(s.Subsections)
		}
	}
	restore(next.Sections)
}

// stripCodeFence removes a ```markdown fence wrapping the whole reply.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return text
	}
	t = strings.TrimSuffix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		return t[nl+1:]
	}
	return text
}
