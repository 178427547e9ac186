package driven

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// ResearchProvider is the grounded research capability. Given a
// section-scoped query it returns zero or more sourced snippets.
type ResearchProvider interface {
	// Research runs one query. An empty result is not an error.
	Research(ctx context.Context, query string) ([]domain.ResultItem, error)

	// Name identifies the provider in logs and run metadata.
	Name() string

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
