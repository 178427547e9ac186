package services

import (
	"context"
	"errors"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

const (
	insightsPrefix   = "Insights on "
	insightsTitleMax = 50
)

// DeepResearchStep researches the open questions of a rewrite and files the
// answers as "Insights on ..." subsections of the first section.
type DeepResearchStep struct {
	provider driven.ResearchProvider
	maxBatch int
}

// NewDeepResearchStep creates a deep research step that runs at most
// maxBatch questions per pass.
func NewDeepResearchStep(provider driven.ResearchProvider, maxBatch int) *DeepResearchStep {
	if maxBatch < 1 {
		maxBatch = domain.DefaultMaxBatchSize
	}
	return &DeepResearchStep{provider: provider, maxBatch: maxBatch}
}

// Research returns a copy of doc with version+1 and the number of questions
// that produced insights. When nothing was added, doc itself is returned
// with 0. A failed query is skipped unless it is a cost limit stop or a
// cancellation, which end the pass with the error. Insight subsections are
// scored from their own citations; the parent section's score is left as is.
func (s *DeepResearchStep) Research(
	ctx context.Context, doc *domain.Document, questions []domain.ResearchQuestion,
) (*domain.Document, int, error) {
	if doc == nil {
		return nil, 0, domain.ErrInvalidInput
	}
	if s.provider == nil {
		return nil, 0, domain.ErrResearchUnavailable
	}
	if len(doc.Sections) == 0 || len(questions) == 0 {
		return doc, 0, nil
	}

	logger.Section("Deep Research")
	batch := questions[:min(len(questions), s.maxBatch)]
	out := doc.Clone()
	out.Version = doc.Version + 1
	parent := &out.Sections[0]

	added := 0
	for i, q := range batch {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		logger.Debug("Deep research %d/%d: %s", i+1, len(batch), q.Question)

		items, err := s.provider.Research(ctx, q.Question)
		if err != nil {
			if isRunFatal(err) {
				return nil, 0, classifyProviderError("deep research", err)
			}
			logger.Warn("Deep research query %d failed, skipping: %v", i+1, err)
			continue
		}
		facts, cites := ExtractFacts(items)
		if len(cites) == 0 {
			continue
		}
		fileInsights(parent, insightsTitle(q.Question), facts, cites)
		added++
	}

	if added == 0 {
		logger.Info("Deep research added nothing")
		return doc, 0, nil
	}
	logger.Info("Deep research produced version %d from %d questions", out.Version, added)
	return out, added, nil
}

// fileInsights appends facts to the subsection titled title, creating it
// when missing, and rescores it.
func fileInsights(parent *domain.Section, title string, facts []string, cites []domain.Citation) {
	for i := range parent.Subsections {
		sub := &parent.Subsections[i]
		if sub.Title == title {
			sub.Content = appendFacts(sub.Content, facts)
			sub.Citations = append(sub.Citations, cites...)
			sub.ConfidenceScore = ConfidenceScore(sub.Citations)
			return
		}
	}
	parent.Subsections = append(parent.Subsections, domain.Section{
		Title:           title,
		Content:         appendFacts("", facts),
		Citations:       cites,
		ConfidenceScore: ConfidenceScore(cites),
	})
}

func insightsTitle(question string) string {
	question = strings.Join(strings.Fields(question), " ")
	r := []rune(question)
	if len(r) > insightsTitleMax {
		return insightsPrefix + string(r[:insightsTitleMax]) + "..."
	}
	return insightsPrefix + question
}

// isRunFatal reports whether err must end the run rather than be skipped.
func isRunFatal(err error) bool {
	return errors.Is(err, domain.ErrCostLimitExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
