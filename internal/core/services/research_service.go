package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Ensure ResearchService implements the interface.
var _ driving.ResearchService = (*ResearchService)(nil)

// ResearchService runs research loops and records them in a RunStore.
type ResearchService struct {
	llm       driven.LLMService
	research  driven.ResearchProvider
	codec     driven.DocumentCodec
	prompts   driven.PromptStore
	runs      driven.RunStore
	exporters driven.ExporterRegistry
	settings  *domain.AppSettings
}

// NewResearchService creates a research service. settings is read at the
// start of every run; runs and exporters may be nil.
func NewResearchService(
	llm driven.LLMService,
	research driven.ResearchProvider,
	codec driven.DocumentCodec,
	prompts driven.PromptStore,
	settings *domain.AppSettings,
) *ResearchService {
	if settings == nil {
		defaults := domain.DefaultAppSettings()
		settings = &defaults
	}
	return &ResearchService{
		llm:      llm,
		research: research,
		codec:    codec,
		prompts:  prompts,
		settings: settings,
	}
}

// SetRunStore enables run persistence.
func (s *ResearchService) SetRunStore(store driven.RunStore) {
	s.runs = store
}

// SetExporters sets the export format registry.
func (s *ResearchService) SetExporters(registry driven.ExporterRegistry) {
	s.exporters = registry
}

// Research executes one run, persisting the run record and every version
// as it is produced. A failed run is recorded with its partial history.
func (s *ResearchService) Research(
	ctx context.Context, req domain.RunRequest, obs driving.RunObserver,
) (*driving.ResearchOutcome, error) {
	if req.MaxIterations == 0 {
		req.MaxIterations = s.settings.Loop.MaxIterations
	}
	if req.MaxIterations > domain.MaxAllowedIterations {
		return nil, fmt.Errorf("%w: max iterations must be at most %d", domain.ErrInvalidInput, domain.MaxAllowedIterations)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: title, iterations >= 1 and threshold in [0,1] are required", err)
	}

	now := time.Now()
	run := &domain.Run{
		ID:                  uuid.New().String(),
		Title:               req.Title,
		Outline:             req.Outline,
		MaxIterations:       req.MaxIterations,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Status:              domain.RunStatusRunning,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.saveRun(ctx, run)

	rec := &recorder{ctx: ctx, store: s.runs, runID: run.ID, next: obs}
	result, err := s.orchestrator(req).Run(ctx, req, rec)

	run.UpdatedAt = time.Now()
	if result != nil {
		run.StopReason = result.StopReason
		run.Iterations = len(result.Iterations)
		run.Versions = len(result.History)
		run.Cost = result.Cost
	}
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		if run.StopReason == "" {
			run.StopReason = stopReasonFor(err)
		}
	} else {
		run.Status = domain.RunStatusCompleted
	}
	s.saveRun(context.WithoutCancel(ctx), run)

	return &driving.ResearchOutcome{Run: run, Result: result}, err
}

// Export renders a document in the named format.
func (s *ResearchService) Export(doc *domain.Document, format string) ([]byte, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if s.exporters == nil {
		if format == "" || format == "markdown" || format == "md" {
			return []byte(s.codec.Serialize(doc)), nil
		}
		return nil, fmt.Errorf("%w: export format %q", domain.ErrUnsupportedType, format)
	}
	if format == "" {
		format = "markdown"
	}
	e, err := s.exporters.Get(format)
	if err != nil {
		return nil, err
	}
	return e.Export(doc)
}

// ResolveFormat returns the export format a name or alias selects.
func (s *ResearchService) ResolveFormat(format string) (string, error) {
	if strings.TrimSpace(format) == "" {
		return "markdown", nil
	}
	if s.exporters == nil {
		if name := strings.ToLower(strings.TrimSpace(format)); name == "markdown" || name == "md" {
			return "markdown", nil
		}
		return "", fmt.Errorf("%w: export format %q", domain.ErrUnsupportedType, format)
	}
	return s.exporters.Resolve(format)
}

// Formats lists the supported export formats.
func (s *ResearchService) Formats() []string {
	if s.exporters == nil {
		return []string{"markdown"}
	}
	return s.exporters.Formats()
}

func (s *ResearchService) orchestrator(req domain.RunRequest) *Orchestrator {
	o := NewOrchestrator(s.llm, s.research, s.codec, s.prompts)
	o.SetPolicy(PolicyFor(s.settings.Loop))
	if s.settings.Loop.DeepResearch {
		o.SetDeepResearch(s.settings.Loop.MaxBatchSize)
	}
	o.SetChatOptions(driven.ChatOptions{
		MaxTokens:   defaultMaxTokens,
		Temperature: s.settings.LLM.Temperature,
	})

	rates := s.settings.Cost
	if req.Budget > 0 {
		rates.MaxTotalCost = req.Budget
	}
	o.SetCostTracker(NewCostTracker(rates))
	return o
}

func (s *ResearchService) saveRun(ctx context.Context, run *domain.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("Failed to save run %s: %v", run.ID, err)
	}
}

// recorder persists each version as it is appended and forwards events.
type recorder struct {
	ctx   context.Context
	store driven.RunStore
	runID string
	next  driving.RunObserver
}

func (r *recorder) OnVersion(seq int, step domain.Step, doc *domain.Document) {
	if r.store != nil {
		if err := r.store.AppendVersion(context.WithoutCancel(r.ctx), r.runID, seq, doc); err != nil {
			logger.Warn("Failed to store version %d of run %s: %v", seq, r.runID, err)
		}
	}
	if r.next != nil {
		r.next.OnVersion(seq, step, doc)
	}
}

func (r *recorder) OnIteration(report domain.IterationReport) {
	if r.next != nil {
		r.next.OnIteration(report)
	}
}
