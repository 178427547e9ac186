package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// significantChange is the content length change, in percent, above which
// a section counts as modified between versions.
const significantChange = 5.0

// HistoryService inspects persisted runs.
type HistoryService struct {
	runs driven.RunStore
}

// NewHistoryService creates a history service.
func NewHistoryService(runs driven.RunStore) *HistoryService {
	return &HistoryService{runs: runs}
}

// List returns all runs, most recent first.
func (s *HistoryService) List(ctx context.Context) ([]domain.Run, error) {
	return s.runs.ListRuns(ctx)
}

// Get returns a run by full ID or unique ID prefix.
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	run, err := s.runs.GetRun(ctx, id)
	if err == nil {
		return run, nil
	}

	all, listErr := s.runs.ListRuns(ctx)
	if listErr != nil {
		return nil, listErr
	}
	var match *domain.Run
	for i := range all {
		if strings.HasPrefix(all[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: run ID prefix %q is ambiguous", domain.ErrInvalidInput, id)
			}
			match = &all[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q: %w", id, domain.ErrNotFound)
	}
	return match, nil
}

// Versions returns the full version history of a run.
func (s *HistoryService) Versions(ctx context.Context, id string) ([]*domain.Document, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.runs.ListVersions(ctx, run.ID)
}

// Version returns one history entry of a run. A negative seq counts from
// the end, so -1 is the final document.
func (s *HistoryService) Version(ctx context.Context, id string, seq int) (*domain.Document, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if seq < 0 {
		seq += run.Versions
	}
	return s.runs.GetVersion(ctx, run.ID, seq)
}

// Report renders the change report across a run's versions.
func (s *HistoryService) Report(ctx context.Context, id string) (string, error) {
	docs, err := s.Versions(ctx, id)
	if err != nil {
		return "", err
	}
	return VersionHistoryReport(docs), nil
}

// Delete removes a run and its history.
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	run, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.runs.DeleteRun(ctx, run.ID)
}

// VersionHistoryReport renders a markdown report of how each version
// differs from the one before: added, removed and modified sections, the
// overall confidence change, and a summary of every section.
func VersionHistoryReport(docs []*domain.Document) string {
	var b strings.Builder
	b.WriteString("# Version History\n\n")
	if len(docs) == 0 {
		b.WriteString("No versions available.")
		return b.String()
	}

	for i, doc := range docs {
		fmt.Fprintf(&b, "## Version %d\n\n", doc.Version)
		if i > 0 {
			writeChanges(&b, docs[i-1], doc)
		}

		b.WriteString("### Section Summaries\n\n")
		for _, s := range doc.Sections {
			fmt.Fprintf(&b, "- **%s** (Confidence: %.2f)\n", s.Title, s.ConfidenceScore)
			if len(s.Citations) > 0 {
				fmt.Fprintf(&b, "  - Citations: %d\n", len(s.Citations))
			}
			if len(s.Subsections) > 0 {
				fmt.Fprintf(&b, "  - Subsections: %d\n", len(s.Subsections))
			}
		}
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

func writeChanges(b *strings.Builder, prev, curr *domain.Document) {
	b.WriteString("### Changes from Previous Version\n\n")

	var added, removed []string
	for _, s := range curr.Sections {
		if _, ok := prev.FindSection(s.Title); !ok {
			added = append(added, s.Title)
		}
	}
	for _, s := range prev.Sections {
		if _, ok := curr.FindSection(s.Title); !ok {
			removed = append(removed, s.Title)
		}
	}
	writeList(b, "Added Sections", added)
	writeList(b, "Removed Sections", removed)

	var modified []string
	for _, s := range curr.Sections {
		old, ok := prev.FindSection(s.Title)
		if !ok {
			continue
		}
		currLen, prevLen := len(s.Content), len(old.Content)
		change := math.Abs(float64(currLen-prevLen)) / float64(max(prevLen, 1)) * 100
		if change <= significantChange {
			continue
		}
		kind := "Condensed"
		if currLen > prevLen {
			kind = "Expanded"
		}
		delta := s.ConfidenceScore - old.ConfidenceScore
		direction := "Decreased"
		if delta > 0 {
			direction = "Increased"
		}
		modified = append(modified, fmt.Sprintf("%s: %s by %.1f%%, Confidence %s by %.2f",
			s.Title, kind, change, direction, math.Abs(delta)))
	}
	writeList(b, "Modified Sections", modified)

	prevAvg, currAvg := prev.AverageConfidence(), curr.AverageConfidence()
	delta := currAvg - prevAvg
	if delta > 0 {
		fmt.Fprintf(b, "**Overall Confidence**: %.2f (Increased by %.2f)\n\n", currAvg, delta)
	} else {
		fmt.Fprintf(b, "**Overall Confidence**: %.2f (Decreased by %.2f)\n\n", currAvg, math.Abs(delta))
	}
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "#### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
