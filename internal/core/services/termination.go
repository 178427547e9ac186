package services

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// TerminationInput is what a policy sees at the end of an iteration.
type TerminationInput struct {
	// Iteration is 1-based.
	Iteration int

	// Document is the verified document of this iteration.
	Document *domain.Document

	// Issues are this iteration's verification findings.
	Issues []string

	// Threshold is the required per-section confidence.
	Threshold float64

	// Metrics are this iteration's progress metrics.
	Metrics domain.ProgressMetrics

	// Prior holds the metrics of earlier iterations, oldest first.
	Prior []domain.ProgressMetrics
}

// TerminationPolicy decides whether the loop continues. The orchestrator
// enforces the iteration ceiling separately, so a policy never needs to.
type TerminationPolicy interface {
	Decide(in TerminationInput) domain.Decision
	Name() string
}

// ThresholdPolicy terminates iff there are no issues and every top-level
// section meets the threshold.
type ThresholdPolicy struct{}

// Name returns the policy name.
func (ThresholdPolicy) Name() string { return string(domain.TerminationThreshold) }

// Decide applies the threshold rule.
func (ThresholdPolicy) Decide(in TerminationInput) domain.Decision {
	if len(in.Issues) > 0 {
		return domain.DecisionContinue
	}
	if in.Document != nil {
		for _, s := range in.Document.Sections {
			if s.ConfidenceScore < in.Threshold {
				return domain.DecisionContinue
			}
		}
	}
	return domain.DecisionTerminate
}

// MetricsPolicy extends the threshold rule with progress metrics: it also
// terminates when StallWindow consecutive iterations added less than
// MinNewInfoRate percent new information, or when topic coverage reaches
// CoverageTarget with no open issues.
type MetricsPolicy struct {
	MinNewInfoRate float64
	CoverageTarget float64
	StallWindow    int
}

// NewMetricsPolicy creates a metrics policy with a three-iteration stall window.
func NewMetricsPolicy(minNewInfoRate, coverageTarget float64) *MetricsPolicy {
	return &MetricsPolicy{
		MinNewInfoRate: minNewInfoRate,
		CoverageTarget: coverageTarget,
		StallWindow:    3,
	}
}

// Name returns the policy name.
func (p *MetricsPolicy) Name() string { return string(domain.TerminationMetrics) }

// Decide applies the threshold rule, then the stall and coverage rules.
func (p *MetricsPolicy) Decide(in TerminationInput) domain.Decision {
	if (ThresholdPolicy{}).Decide(in) == domain.DecisionTerminate {
		return domain.DecisionTerminate
	}

	window := p.StallWindow
	if window < 1 {
		window = 1
	}
	history := append(append([]domain.ProgressMetrics(nil), in.Prior...), in.Metrics)
	if len(history) >= window {
		stalled := true
		for _, m := range history[len(history)-window:] {
			if m.NewInformationRate >= p.MinNewInfoRate {
				stalled = false
				break
			}
		}
		if stalled {
			return domain.DecisionTerminate
		}
	}

	if len(in.Issues) == 0 && in.Metrics.TopicCoverage >= p.CoverageTarget {
		return domain.DecisionTerminate
	}
	return domain.DecisionContinue
}

// PolicyFor returns the policy for a termination mode.
func PolicyFor(loop domain.LoopSettings) TerminationPolicy {
	if loop.Termination == domain.TerminationMetrics {
		return NewMetricsPolicy(loop.MinNewInfoRate, loop.CoverageTarget)
	}
	return ThresholdPolicy{}
}

// MeasureProgress estimates how far an iteration moved the document.
//
//   - new information: share of distinct words in curr absent from prev
//   - topic coverage: share of baseline section titles still present in curr
//     as a section title or mentioned in its content
//   - analysis depth: 1-10 from words and citations per section
//   - question resolution: share of prevQuestions the latest rewrite no
//     longer asks
func MeasureProgress(
	baseline, prev, curr *domain.Document, prevQuestions, questions []domain.ResearchQuestion,
) domain.ProgressMetrics {
	return domain.ProgressMetrics{
		NewInformationRate:     newInformationRate(prev, curr),
		TopicCoverage:          topicCoverage(baseline, curr),
		AnalysisDepth:          analysisDepth(curr),
		QuestionResolutionRate: resolutionRate(prevQuestions, questions),
	}
}

func newInformationRate(prev, curr *domain.Document) float64 {
	currWords := vocabulary(curr)
	if len(currWords) == 0 {
		return 0
	}
	prevWords := vocabulary(prev)
	novel := 0
	for w := range currWords {
		if _, ok := prevWords[w]; !ok {
			novel++
		}
	}
	return 100 * float64(novel) / float64(len(currWords))
}

func topicCoverage(baseline, curr *domain.Document) float64 {
	if baseline == nil || len(baseline.Sections) == 0 {
		return 100
	}
	if curr == nil {
		return 0
	}
	titles := make(map[string]struct{}, len(curr.Sections))
	var text strings.Builder
	for _, s := range curr.Sections {
		titles[strings.ToLower(s.Title)] = struct{}{}
		text.WriteString(strings.ToLower(s.Content))
		text.WriteByte('\n')
	}
	body := text.String()
	covered := 0
	for _, s := range baseline.Sections {
		t := strings.ToLower(s.Title)
		if _, ok := titles[t]; ok || strings.Contains(body, t) {
			covered++
		}
	}
	return 100 * float64(covered) / float64(len(baseline.Sections))
}

func analysisDepth(doc *domain.Document) int {
	if doc == nil || len(doc.Sections) == 0 {
		return 1
	}
	words := 0
	forEachSection(doc.Sections, func(s domain.Section) {
		words += len(strings.Fields(s.Content))
	})
	n := float64(len(doc.Sections))
	depth := 1 + int(float64(words)/n/75) + int(float64(doc.CitationCount())/n)
	return min(max(depth, 1), 10)
}

func resolutionRate(prevQuestions, questions []domain.ResearchQuestion) float64 {
	if len(prevQuestions) == 0 {
		return 100
	}
	open := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		open[normaliseQuestion(q.Question)] = struct{}{}
	}
	resolved := 0
	for _, q := range prevQuestions {
		if _, ok := open[normaliseQuestion(q.Question)]; !ok {
			resolved++
		}
	}
	return 100 * float64(resolved) / float64(len(prevQuestions))
}

func vocabulary(doc *domain.Document) map[string]struct{} {
	words := make(map[string]struct{})
	if doc == nil {
		return words
	}
	forEachSection(doc.Sections, func(s domain.Section) {
		for _, w := range strings.FieldsFunc(strings.ToLower(s.Content), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			words[w] = struct{}{}
		}
	})
	return words
}

func forEachSection(sections []domain.Section, fn func(domain.Section)) {
	for _, s := range sections {
		fn(s)
		forEachSection(s.Subsections, fn)
	}
}
