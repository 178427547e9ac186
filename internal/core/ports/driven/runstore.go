package driven

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// RunStore persists runs and their append-only version history.
type RunStore interface {
	// SaveRun inserts or updates a run record.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun returns a run by ID, or domain.ErrNotFound.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns runs, most recent first.
	ListRuns(ctx context.Context) ([]domain.Run, error)

	// DeleteRun removes a run and its versions.
	DeleteRun(ctx context.Context, id string) error

	// AppendVersion stores the history entry at position seq (0-based).
	// Entries are immutable once stored.
	AppendVersion(ctx context.Context, runID string, seq int, doc *domain.Document) error

	// GetVersion returns the history entry at position seq, or domain.ErrNotFound.
	GetVersion(ctx context.Context, runID string, seq int) (*domain.Document, error)

	// ListVersions returns the full history of a run in order.
	ListVersions(ctx context.Context, runID string) ([]*domain.Document, error)
}
