package mcp

import (
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Research runs the iterative research loop.
	Research driving.ResearchService

	// History reads persisted runs. Optional: without it the run
	// resources are empty.
	History driving.HistoryService

	// Settings supplies loop defaults for requests that omit them.
	// Optional: without it the built-in defaults apply.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p == nil || p.Research == nil {
		return ErrMissingResearchService
	}
	return nil
}
