// Package messages defines Bubbletea message types for the TUI.
// Run observer events are delivered to the model as these messages.
package messages

import (
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// VersionAppended is sent when the loop appends a document to the history.
type VersionAppended struct {
	Seq      int
	Step     domain.Step
	Version  int
	Sections int
}

// IterationReported is sent after each iteration's termination decision.
type IterationReported struct {
	Report domain.IterationReport
}

// RunFinished carries the outcome of the run back to the model.
type RunFinished struct {
	Outcome *driving.ResearchOutcome
	Err     error
}
