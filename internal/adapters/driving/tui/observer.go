package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// Ensure Observer implements the interface.
var _ driving.RunObserver = (*Observer)(nil)

// Observer forwards loop events to the TUI as messages. Sends block
// until the view reads them or ctx is done.
type Observer struct {
	ctx    context.Context
	events chan<- tea.Msg
}

// NewObserver creates an observer writing to events.
func NewObserver(ctx context.Context, events chan<- tea.Msg) *Observer {
	return &Observer{ctx: ctx, events: events}
}

// OnVersion reports an appended history entry.
func (o *Observer) OnVersion(seq int, step domain.Step, doc *domain.Document) {
	msg := messages.VersionAppended{Seq: seq, Step: step}
	if doc != nil {
		msg.Version = doc.Version
		msg.Sections = len(doc.Sections)
	}
	o.send(msg)
}

// OnIteration reports an iteration's decision.
func (o *Observer) OnIteration(report domain.IterationReport) {
	o.send(messages.IterationReported{Report: report})
}

func (o *Observer) send(msg tea.Msg) {
	select {
	case o.events <- msg:
	case <-o.ctx.Done():
	}
}
