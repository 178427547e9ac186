package driving

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// RunObserver receives loop events as they happen. Implementations must
// not modify the documents they are handed.
type RunObserver interface {
	// OnVersion is called for every document appended to the history.
	OnVersion(seq int, step domain.Step, doc *domain.Document)

	// OnIteration is called after each iteration's termination decision.
	OnIteration(report domain.IterationReport)
}

// ResearchOutcome is a finished (or failed) run together with its record.
type ResearchOutcome struct {
	Run    *domain.Run
	Result *domain.RunResult
}

// ResearchService runs the iterative research/enhancement loop.
type ResearchService interface {
	// Research executes one run. obs may be nil. On failure the outcome is
	// still returned with the history produced so far.
	Research(ctx context.Context, req domain.RunRequest, obs RunObserver) (*ResearchOutcome, error)

	// Export renders a document in the named format.
	Export(doc *domain.Document, format string) ([]byte, error)

	// Formats lists the supported export formats.
	Formats() []string

	// ResolveFormat returns the export format a name or alias selects.
	// An empty name selects markdown.
	ResolveFormat(format string) (string, error)
}

// HistoryService inspects persisted runs.
type HistoryService interface {
	// List returns all runs, most recent first.
	List(ctx context.Context) ([]domain.Run, error)

	// Get returns a run by ID or unique ID prefix.
	Get(ctx context.Context, id string) (*domain.Run, error)

	// Versions returns the full version history of a run.
	Versions(ctx context.Context, id string) ([]*domain.Document, error)

	// Version returns one history entry of a run.
	Version(ctx context.Context, id string, seq int) (*domain.Document, error)

	// Report renders the markdown change report across a run's versions.
	Report(ctx context.Context, id string) (string, error)

	// Delete removes a run and its history.
	Delete(ctx context.Context, id string) error
}
