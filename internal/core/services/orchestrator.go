package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// defaultMaxTokens bounds rewrite replies when no limit is configured.
const defaultMaxTokens = 4096

// Orchestrator drives the research, enhancement, verification and
// termination cycle over an append-only document history.
type Orchestrator struct {
	llm      driven.LLMService
	research driven.ResearchProvider
	codec    driven.DocumentCodec
	prompts  driven.PromptStore
	policy   TerminationPolicy
	tracker  *CostTracker
	chatOpts driven.ChatOptions

	// deepBatch enables deep research when positive.
	deepBatch int
}

// NewOrchestrator creates an orchestrator using the threshold policy.
// prompts may be nil, in which case built-in prompts are used.
func NewOrchestrator(
	llm driven.LLMService,
	research driven.ResearchProvider,
	codec driven.DocumentCodec,
	prompts driven.PromptStore,
) *Orchestrator {
	return &Orchestrator{
		llm:      llm,
		research: research,
		codec:    codec,
		prompts:  prompts,
		policy:   ThresholdPolicy{},
		chatOpts: driven.ChatOptions{
			MaxTokens:   defaultMaxTokens,
			Temperature: domain.DefaultTemperature,
		},
	}
}

// SetPolicy replaces the termination policy.
func (o *Orchestrator) SetPolicy(p TerminationPolicy) {
	if p != nil {
		o.policy = p
	}
}

// SetCostTracker meters every provider call against tracker.
func (o *Orchestrator) SetCostTracker(tracker *CostTracker) {
	o.tracker = tracker
}

// SetDeepResearch enables a deep research pass over up to maxBatch of the
// rewrite's questions, followed by a second rewrite, in every iteration
// that raised questions. Zero disables it.
func (o *Orchestrator) SetDeepResearch(maxBatch int) {
	o.deepBatch = max(maxBatch, 0)
}

// SetChatOptions sets the options for generative calls.
func (o *Orchestrator) SetChatOptions(opts driven.ChatOptions) {
	o.chatOpts = opts
}

// Run structures the outline into a version-1 document and iterates at most
// req.MaxIterations times. On failure the returned result still holds the
// history produced before the error, and the error is returned unchanged in
// kind (provider failure, cost limit, cancellation).
func (o *Orchestrator) Run(ctx context.Context, req domain.RunRequest, obs driving.RunObserver) (*domain.RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("run %q: %w", req.Title, err)
	}
	if o.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if o.research == nil {
		return nil, domain.ErrResearchUnavailable
	}

	llm, research := o.providers()
	researchStep := NewResearchStep(research, o.prompts)
	enhanceStep := NewEnhancementStep(llm, o.codec, o.prompts, o.chatOpts)
	verifier := NewVerifier(req.ConfidenceThreshold)
	var deepStep *DeepResearchStep
	if o.deepBatch > 0 {
		deepStep = NewDeepResearchStep(research, o.deepBatch)
	}

	result := &domain.RunResult{}
	record := func(step domain.Step, doc *domain.Document) {
		seq := len(result.History)
		result.History = append(result.History, doc)
		result.Final = doc
		if obs != nil {
			obs.OnVersion(seq, step, doc)
		}
	}
	fail := func(err error) (*domain.RunResult, error) {
		result.StopReason = stopReasonFor(err)
		o.settle(result)
		logger.Warn("Run stopped (%s) after %d versions: %v", result.StopReason, len(result.History), err)
		return result, err
	}

	logger.Section("Initialise Document")
	current, err := o.structureOutline(ctx, llm, req)
	if err != nil {
		return fail(err)
	}
	record(domain.StepOutline, current)
	baseline := current

	var prevQuestions []domain.ResearchQuestion
	var prior []domain.ProgressMetrics
	result.StopReason = domain.StopMaxIterations

	for iteration := 1; iteration <= req.MaxIterations; iteration++ {
		logger.Section(fmt.Sprintf("Iteration %d/%d", iteration, req.MaxIterations))
		costBefore := o.spent()

		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		researched, err := researchStep.Research(ctx, current)
		if err != nil {
			return fail(err)
		}
		record(domain.StepResearch, researched)

		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		enhanced, questions, err := enhanceStep.EnhanceWithQuestions(ctx, researched)
		if err != nil {
			return fail(err)
		}
		record(domain.StepEnhance, enhanced)

		deepened := false
		if deepStep != nil && len(questions) > 0 {
			deeper, final, finalQuestions, err := o.deepen(ctx, deepStep, enhanceStep, enhanced, questions)
			if err != nil {
				return fail(err)
			}
			if final != nil {
				record(domain.StepResearch, deeper)
				record(domain.StepEnhance, final)
				enhanced, questions, deepened = final, finalQuestions, true
			}
		}

		verified, issues := verifier.Verify(enhanced)
		metrics := MeasureProgress(baseline, current, verified, prevQuestions, questions)
		decision := o.policy.Decide(TerminationInput{
			Iteration: iteration,
			Document:  verified,
			Issues:    issues,
			Threshold: req.ConfidenceThreshold,
			Metrics:   metrics,
			Prior:     prior,
		})

		report := domain.IterationReport{
			Iteration:         iteration,
			ResearchedVersion: researched.Version,
			EnhancedVersion:   enhanced.Version,
			Scores:            sectionScores(verified),
			Issues:            issues,
			Questions:         questionTexts(questions),
			DeepResearched:    deepened,
			Decision:          decision,
			Metrics:           &metrics,
			Cost:              o.spent() - costBefore,
		}
		result.Iterations = append(result.Iterations, report)
		if obs != nil {
			obs.OnIteration(report)
		}
		logger.Info("Iteration %d: %d issues, decision %s (%s policy)",
			iteration, len(issues), decision, o.policy.Name())

		current = verified
		prevQuestions = questions
		prior = append(prior, metrics)

		if decision == domain.DecisionTerminate {
			result.StopReason = domain.StopConverged
			break
		}
	}

	result.Final = current
	o.settle(result)
	return result, nil
}

// deepen runs the deep research pass and its follow-up rewrite. It returns
// nil documents when the pass added nothing or a provider failed, so the
// iteration continues with the first rewrite; only cost limit stops and
// cancellation are returned as errors.
func (o *Orchestrator) deepen(
	ctx context.Context,
	deepStep *DeepResearchStep,
	enhanceStep *EnhancementStep,
	enhanced *domain.Document,
	questions []domain.ResearchQuestion,
) (*domain.Document, *domain.Document, []domain.ResearchQuestion, error) {
	deeper, added, err := deepStep.Research(ctx, enhanced, questions)
	if err != nil {
		return nil, nil, nil, err
	}
	if added == 0 {
		return nil, nil, nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	final, finalQuestions, err := enhanceStep.EnhanceWithQuestions(ctx, deeper)
	if err != nil {
		if isRunFatal(err) {
			return nil, nil, nil, err
		}
		logger.Warn("Rewrite after deep research failed, keeping the first rewrite: %v", err)
		return nil, nil, nil, nil
	}
	return deeper, final, finalQuestions, nil
}

// structureOutline asks the generative provider to turn the outline into
// one-level section headings and parses the reply as version 1.
func (o *Orchestrator) structureOutline(
	ctx context.Context, llm driven.LLMService, req domain.RunRequest,
) (*domain.Document, error) {
	user := fmt.Sprintf("Title: %s\n\nOutline:\n%s", req.Title, strings.TrimSpace(req.Outline))
	reply, err := llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: loadPrompt(o.prompts, driven.PromptOutlineSystem)},
		{Role: driven.RoleUser, Content: user},
	}, o.chatOpts)
	if err != nil {
		return nil, classifyProviderError("structure outline", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("structure outline: %w: empty reply", domain.ErrProviderFailure)
	}

	doc := o.codec.Parse(stripCodeFence(reply))
	doc.Title = req.Title
	doc.Version = 1
	// The outline carries no evidence yet.
	for i := range doc.Sections {
		doc.Sections[i].Citations = nil
		doc.Sections[i].ConfidenceScore = 0
	}
	logger.Info("Structured outline into %d sections", len(doc.Sections))
	return doc, nil
}

func (o *Orchestrator) providers() (driven.LLMService, driven.ResearchProvider) {
	if o.tracker == nil {
		return o.llm, o.research
	}
	return NewMeteredLLM(o.llm, o.tracker), NewMeteredResearch(o.research, o.tracker)
}

func (o *Orchestrator) spent() float64 {
	if o.tracker == nil {
		return 0
	}
	return o.tracker.Spent()
}

// settle copies the tracker's totals into result.
func (o *Orchestrator) settle(result *domain.RunResult) {
	if o.tracker == nil {
		return
	}
	result.Cost = o.tracker.Spent()
	result.LLMCalls = o.tracker.Calls(CallKindLLM)
	result.ResearchCalls = o.tracker.Calls(CallKindResearch)
}

func sectionScores(doc *domain.Document) []domain.SectionScore {
	scores := make([]domain.SectionScore, len(doc.Sections))
	for i, s := range doc.Sections {
		scores[i] = domain.SectionScore{Title: s.Title, Score: s.ConfidenceScore}
	}
	return scores
}

func stopReasonFor(err error) domain.StopReason {
	switch {
	case errors.Is(err, domain.ErrCostLimitExceeded):
		return domain.StopCostLimit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.StopCancelled
	default:
		return domain.StopError
	}
}
